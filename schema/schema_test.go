package schema

import "testing"

func TestNewSchemaValidation(t *testing.T) {
	_, err := NewSchema([]byte(`{"id": "abc"}`))
	if err == nil {
		t.Fatal("expected a validation error for a schema with no attributes")
	}
	ve, ok := err.(*ValidationErrors)
	if !ok {
		t.Fatalf("expected *ValidationErrors, got %T", err)
	}
	if ve.Count != 1 {
		t.Fatalf("expected 1 validation error, got %d", ve.Count)
	}
}

func TestRegistryCoreSchemas(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}

	rt, ok := reg.ResourceType("/Users")
	if !ok {
		t.Fatal("expected /Users resource type to be registered")
	}

	at, ok := rt.GetAtType("username")
	if !ok || at.Required != true {
		t.Fatalf("expected userName to be required, got %+v ok=%v", at, ok)
	}

	if _, ok := rt.GetAtType("name.givenname"); !ok {
		t.Fatal("expected name.givenName sub-attribute to resolve")
	}

	if _, ok := reg.Schema("urn:scim:schemas:extension:enterprise:1.0"); !ok {
		t.Fatal("expected enterprise extension schema to be registered")
	}
}
