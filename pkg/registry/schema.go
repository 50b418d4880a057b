package registry

// Property describes one entity the extraction prompt may ask for.
type Property struct {
	Type        string        `json:"type"`
	Description string        `json:"description,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
}

type SubModule struct {
	Code        string `json:"submoduleCode"`
	Name        string `json:"submoduleName"`
	Endpoint    string `json:"endpoint,omitempty"`
	RequestFile string `json:"requestFile,omitempty"`
}

type Module struct {
	Code       string              `json:"moduleCode"`
	Name       string              `json:"moduleName"`
	Submodules []SubModule         `json:"submodules"`
	Properties map[string]Property `json:"properties,omitempty"`
}

type file struct {
	Modules []Module `json:"modules"`
}

// documentSchema is checked before the semantic rules in validate.
const documentSchema = `{
  "type": "object",
  "required": ["modules"],
  "properties": {
    "modules": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["moduleCode", "moduleName", "submodules"],
        "properties": {
          "moduleCode": {"type": "string", "minLength": 1},
          "moduleName": {"type": "string", "minLength": 1},
          "submodules": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["submoduleCode", "submoduleName"],
              "properties": {
                "submoduleCode": {"type": "string", "minLength": 1},
                "submoduleName": {"type": "string"},
                "endpoint": {"type": "string"},
                "requestFile": {"type": "string"}
              }
            }
          },
          "properties": {
            "type": "object",
            "additionalProperties": {
              "type": "object",
              "properties": {
                "type": {"type": "string"},
                "description": {"type": "string"},
                "enum": {"type": "array"}
              }
            }
          }
        }
      }
    }
  }
}`
