package schema

// The SCIM 1.0 core schemas and resource types, embedded so a server can
// start with zero configuration; operators may register additional
// schemas and resource types via Registry.AddSchema/AddResourceType.

var coreUserSchema = []byte(`{
  "id": "urn:scim:schemas:core:1.0",
  "name": "User",
  "description": "SCIM 1.0 core User schema",
  "attributes": [
    {"name": "userName", "type": "string", "required": true, "caseExact": false, "uniqueness": "server"},
    {"name": "name", "type": "complex", "subAttributes": [
      {"name": "formatted", "type": "string"},
      {"name": "familyName", "type": "string"},
      {"name": "givenName", "type": "string"},
      {"name": "middleName", "type": "string"},
      {"name": "honorificPrefix", "type": "string"},
      {"name": "honorificSuffix", "type": "string"}
    ]},
    {"name": "displayName", "type": "string"},
    {"name": "nickName", "type": "string"},
    {"name": "profileUrl", "type": "reference", "referenceTypes": ["external"]},
    {"name": "title", "type": "string"},
    {"name": "userType", "type": "string"},
    {"name": "preferredLanguage", "type": "string"},
    {"name": "locale", "type": "string"},
    {"name": "timezone", "type": "string"},
    {"name": "active", "type": "boolean"},
    {"name": "password", "type": "string", "mutability": "writeonly", "returned": "never"},
    {"name": "emails", "type": "complex", "multiValued": true, "subAttributes": [
      {"name": "value", "type": "string"},
      {"name": "type", "type": "string"},
      {"name": "primary", "type": "boolean"}
    ]},
    {"name": "phoneNumbers", "type": "complex", "multiValued": true, "subAttributes": [
      {"name": "value", "type": "string"},
      {"name": "type", "type": "string"},
      {"name": "primary", "type": "boolean"}
    ]},
    {"name": "ims", "type": "complex", "multiValued": true, "subAttributes": [
      {"name": "value", "type": "string"},
      {"name": "type", "type": "string"},
      {"name": "primary", "type": "boolean"}
    ]},
    {"name": "photos", "type": "complex", "multiValued": true, "subAttributes": [
      {"name": "value", "type": "reference", "referenceTypes": ["external"]},
      {"name": "type", "type": "string"},
      {"name": "primary", "type": "boolean"}
    ]},
    {"name": "addresses", "type": "complex", "multiValued": true, "subAttributes": [
      {"name": "formatted", "type": "string"},
      {"name": "streetAddress", "type": "string"},
      {"name": "locality", "type": "string"},
      {"name": "region", "type": "string"},
      {"name": "postalCode", "type": "string"},
      {"name": "country", "type": "string"},
      {"name": "type", "type": "string"}
    ]},
    {"name": "groups", "type": "complex", "multiValued": true, "mutability": "readonly", "subAttributes": [
      {"name": "value", "type": "string", "mutability": "readonly"},
      {"name": "$ref", "type": "reference", "referenceTypes": ["external"], "mutability": "readonly"},
      {"name": "display", "type": "string", "mutability": "readonly"}
    ]},
    {"name": "entitlements", "type": "complex", "multiValued": true, "subAttributes": [
      {"name": "value", "type": "string"},
      {"name": "type", "type": "string"},
      {"name": "primary", "type": "boolean"}
    ]},
    {"name": "roles", "type": "complex", "multiValued": true, "subAttributes": [
      {"name": "value", "type": "string"},
      {"name": "type", "type": "string"},
      {"name": "primary", "type": "boolean"}
    ]},
    {"name": "x509Certificates", "type": "complex", "multiValued": true, "subAttributes": [
      {"name": "value", "type": "binary"},
      {"name": "type", "type": "string"},
      {"name": "primary", "type": "boolean"}
    ]}
  ]
}`)

var coreGroupSchema = []byte(`{
  "id": "urn:scim:schemas:core:1.0:Group",
  "name": "Group",
  "description": "SCIM 1.0 core Group schema",
  "attributes": [
    {"name": "displayName", "type": "string", "required": true},
    {"name": "members", "type": "complex", "multiValued": true, "subAttributes": [
      {"name": "value", "type": "string"},
      {"name": "$ref", "type": "reference", "referenceTypes": ["external"]},
      {"name": "display", "type": "string"},
      {"name": "type", "type": "string"}
    ]}
  ]
}`)

var enterpriseUserSchema = []byte(`{
  "id": "urn:scim:schemas:extension:enterprise:1.0",
  "name": "EnterpriseUser",
  "description": "SCIM 1.0 Enterprise User extension",
  "attributes": [
    {"name": "employeeNumber", "type": "string"},
    {"name": "costCenter", "type": "string"},
    {"name": "organization", "type": "string"},
    {"name": "division", "type": "string"},
    {"name": "department", "type": "string"},
    {"name": "manager", "type": "complex", "subAttributes": [
      {"name": "managerId", "type": "string"},
      {"name": "displayName", "type": "string", "mutability": "readonly"}
    ]}
  ]
}`)

var userResourceType = []byte(`{
  "id": "User",
  "name": "User",
  "endpoint": "/Users",
  "description": "SCIM 1.0 user account",
  "schema": "urn:scim:schemas:core:1.0",
  "schemaExtensions": [
    {"schema": "urn:scim:schemas:extension:enterprise:1.0", "required": false}
  ]
}`)

var groupResourceType = []byte(`{
  "id": "Group",
  "name": "Group",
  "endpoint": "/Groups",
  "description": "SCIM 1.0 group of users",
  "schema": "urn:scim:schemas:core:1.0:Group"
}`)
