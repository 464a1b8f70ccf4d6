package introspection

// payload types mirror the json answer to introspectionQuery

type introspectionResult struct {
	Schema *schemaPayload `json:"__schema"`
}

type schemaPayload struct {
	QueryType        namedPayload       `json:"queryType"`
	MutationType     *namedPayload      `json:"mutationType"`
	SubscriptionType *namedPayload      `json:"subscriptionType"`
	Types            []typePayload      `json:"types"`
	Directives       []directivePayload `json:"directives"`
}

type namedPayload struct {
	Name string `json:"name"`
}

type directivePayload struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Locations   []string            `json:"locations"`
	Args        []inputValuePayload `json:"args"`
}

type typePayload struct {
	Kind          string              `json:"kind"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Fields        []fieldPayload      `json:"fields"`
	InputFields   []inputValuePayload `json:"inputFields"`
	Interfaces    []typeRefPayload    `json:"interfaces"`
	PossibleTypes []typeRefPayload    `json:"possibleTypes"`
	EnumValues    []enumValuePayload  `json:"enumValues"`
}

type fieldPayload struct {
	Name              string              `json:"name"`
	Description       string              `json:"description"`
	Args              []inputValuePayload `json:"args"`
	Type              typeRefPayload      `json:"type"`
	IsDeprecated      bool                `json:"isDeprecated"`
	DeprecationReason string              `json:"deprecationReason"`
}

type enumValuePayload struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	IsDeprecated      bool   `json:"isDeprecated"`
	DeprecationReason string `json:"deprecationReason"`
}

// DefaultValue is usually a graphql literal, some services send plain json
type inputValuePayload struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	DefaultValue interface{}    `json:"defaultValue"`
	Type         typeRefPayload `json:"type"`
}

type typeRefPayload struct {
	Kind   string          `json:"kind"`
	Name   string          `json:"name"`
	OfType *typeRefPayload `json:"ofType"`
}
