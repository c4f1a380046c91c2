package provider

import "github.com/daimatz/deobvm/pkg/value"

// HierarchyTypeProvider answers instanceof from the runtime class of a
// reference and the session's hierarchy resolver.
type HierarchyTypeProvider struct{}

// CanCheckInstance implements TypeProvider.
func (HierarchyTypeProvider) CanCheckInstance(ctx *Context, v value.Value, typ string) bool {
	return v.Kind == value.KindRef
}

// CheckInstance implements TypeProvider.
func (HierarchyTypeProvider) CheckInstance(ctx *Context, v value.Value, typ string) (bool, error) {
	return ctx.Session.Resolver.IsAssignableFrom(typ, value.TypeOf(v))
}

// IdentityEqualityProvider compares references by identity.
type IdentityEqualityProvider struct{}

// CanCheckEquality implements EqualityProvider.
func (IdentityEqualityProvider) CanCheckEquality(ctx *Context, a, b value.Value) bool {
	return true
}

// CheckEquality implements EqualityProvider.
func (IdentityEqualityProvider) CheckEquality(ctx *Context, a, b value.Value) (bool, error) {
	return value.SameObject(a, b), nil
}
