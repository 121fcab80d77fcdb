package telemetry

// Kind is the expected type of a telemetry field.
type Kind string

// Field kinds.
const (
	KindNumber Kind = "number"
	KindString Kind = "string"
	KindObject Kind = "object"
	KindList   Kind = "list"
)

// Field describes one accepted telemetry field.
type Field struct {
	// Name is the canonical key stored and returned.
	Name string `json:"name"`

	// Aliases are alternative inbound keys. The canonical name wins when
	// both are present; otherwise the first alias present is used.
	Aliases []string `json:"aliases,omitempty"`

	Kind Kind `json:"kind"`

	// Clamp enables the [Min, Max] range for numbers. NoMax leaves the
	// upper bound open.
	Clamp bool    `json:"clamp,omitempty"`
	Min   float64 `json:"min,omitempty"`
	Max   float64 `json:"max,omitempty"`
	NoMax bool    `json:"noMax,omitempty"`

	// Decimals is the rounding precision for numbers; 0 rounds to integer.
	Decimals int `json:"decimals"`

	// MaxLen truncates strings (in runes) and list items.
	MaxLen int `json:"maxLen,omitempty"`

	// MaxItems keeps the newest items of a list.
	MaxItems int `json:"maxItems,omitempty"`

	// Fields describes the members of an object field.
	Fields []Field `json:"fields,omitempty"`
}

// Schema is an ordered set of fields.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Lookup returns the field whose name or alias matches key.
func (s Schema) Lookup(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == key {
			return f, true
		}
		for _, a := range f.Aliases {
			if a == key {
				return f, true
			}
		}
	}
	return Field{}, false
}

// Keys returns every inbound key the schema accepts at its top level.
func (s Schema) Keys() []string {
	var keys []string
	for _, f := range s.Fields {
		keys = append(keys, f.Name)
		keys = append(keys, f.Aliases...)
	}
	return keys
}

// Schemas bundles the schemas applied to a heartbeat.
type Schemas struct {
	Status  Schema `json:"status"`
	Metrics Schema `json:"metrics"`
}

// Error list limits.
const (
	maxErrors      = 10
	maxErrorLength = 300
)

// DefaultMetricsSchema describes the numeric gauges a display reports.
func DefaultMetricsSchema() Schema {
	return Schema{Fields: []Field{
		{Name: "cpuLoad", Aliases: []string{"cpu", "cpu_load"}, Kind: KindNumber, Clamp: true, Min: 0, Max: 100, Decimals: 1},
		{Name: "memoryUsage", Aliases: []string{"mem", "memory", "memory_usage"}, Kind: KindNumber, Clamp: true, Min: 0, Max: 100, Decimals: 1},
		{Name: "temperature", Aliases: []string{"temp", "cpuTemp"}, Kind: KindNumber, Clamp: true, Min: -50, Max: 150, Decimals: 1},
		{Name: "uptime", Aliases: []string{"uptimeSeconds"}, Kind: KindNumber, Clamp: true, Min: 0, NoMax: true, Decimals: 0},
	}}
}

// DefaultStatusSchema describes the descriptive state a display reports.
func DefaultStatusSchema() Schema {
	return Schema{Fields: []Field{
		{Name: "firmware", Aliases: []string{"firmwareVersion", "version"}, Kind: KindString, MaxLen: 64},
		{Name: "network", Aliases: []string{"net"}, Kind: KindObject, Fields: []Field{
			{Name: "quality", Aliases: []string{"signalQuality"}, Kind: KindNumber, Clamp: true, Min: 0, Max: 100, Decimals: 0},
			{Name: "rssi", Aliases: []string{"signal", "signalStrength"}, Kind: KindNumber, Clamp: true, Min: -150, Max: 0, Decimals: 0},
			{Name: "ssid", Kind: KindString, MaxLen: 64},
			{Name: "ip", Aliases: []string{"address"}, Kind: KindString, MaxLen: 64},
			{Name: "type", Aliases: []string{"kind", "interface"}, Kind: KindString, MaxLen: 32},
		}},
		{Name: "notes", Aliases: []string{"note"}, Kind: KindString, MaxLen: 500},
		{Name: "errors", Kind: KindList, MaxLen: maxErrorLength, MaxItems: maxErrors},
	}}
}

// DefaultSchemas returns the status and metrics schemas used by the recorder.
func DefaultSchemas() Schemas {
	return Schemas{Status: DefaultStatusSchema(), Metrics: DefaultMetricsSchema()}
}
