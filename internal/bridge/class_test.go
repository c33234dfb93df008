package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pyrs/internal/ir"
)

func fieldNames(c *ir.Class) []string {
	var out []string
	for _, f := range c.Fields {
		out = append(out, f.Name)
	}
	return out
}

func TestFieldDiscoveryAcrossMethods(t *testing.T) {
	mod, _ := lower(t, `
class Account:
    owner: str

    def __init__(self, owner, balance):
        self.owner = owner
        self.balance = balance

    def close(self):
        self.closed = True
        self.balance = 0

    @staticmethod
    def make():
        return Account("x", 0)
`)
	cls := mod.Class("Account")
	require.NotNil(t, cls)
	assert.Equal(t, []string{"owner", "balance", "closed"}, fieldNames(cls), "first-seen order, no duplicates")
	assert.Equal(t, ir.StrType, cls.Field("owner").Type)
	assert.True(t, ir.IsUnknown(cls.Field("balance").Type))

	init := cls.Init()
	require.NotNil(t, init)
	require.Len(t, init.Params, 2, "self is not a parameter")
	assert.Same(t, cls, init.Class)

	factory := cls.Method("make")
	assert.True(t, factory.Static)
	assert.Equal(t, "Account.make", factory.QualifiedName())
}

func TestDataclass(t *testing.T) {
	mod, _ := lower(t, `
@dataclass
class Point:
    x: float
    y: float = 0.0
    LABEL = "pt"
`)
	cls := mod.Class("Point")
	assert.True(t, cls.Dataclass)
	assert.Equal(t, []string{"x", "y"}, fieldNames(cls))
	assert.NotNil(t, cls.Field("y").Default)
	require.NotNil(t, cls.Constant("LABEL"))
}

func TestExceptionClasses(t *testing.T) {
	mod, _ := lower(t, `
class AppError(Exception):
    pass

class NotFound(AppError):
    pass

class Plain:
    pass
`)
	assert.True(t, mod.Class("AppError").Exception)
	assert.True(t, mod.Class("NotFound").Exception, "inherits from a user exception")
	assert.False(t, mod.Class("Plain").Exception)
}

func TestMethodDecoratorSkipsMethodOnly(t *testing.T) {
	mod, diags := lower(t, `
class C:
    @property
    def value(self):
        return 1

    def other(self):
        return 2
`)
	cls := mod.Class("C")
	assert.True(t, cls.Method("value").Skipped)
	assert.False(t, cls.Method("other").Skipped)
	assert.Equal(t, 1, diags.Len())
}
