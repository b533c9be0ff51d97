package catalog

// Category is a component type with an ordered attribute schema.
type Category struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Attributes []string `json:"attributes"`
	BuiltIn    bool     `json:"built_in"`
}

func builtin(name string, attrs ...string) Category {
	return Category{ID: Slugify(name), Name: name, Attributes: attrs, BuiltIn: true}
}

// Builtins returns the categories every registry starts with.
func Builtins() []Category {
	return []Category{
		builtin("Resistor", "Resistance", "Tolerance", "Power Rating", "Package"),
		builtin("Capacitor", "Capacitance", "Voltage Rating", "Dielectric", "Package"),
		builtin("Inductor", "Inductance", "Current Rating", "Package"),
		builtin("Diode", "Kind", "Forward Voltage", "Current Rating", "Package"),
		builtin("LED", "Color", "Forward Voltage", "Size"),
		builtin("Transistor", "Polarity", "Voltage Rating", "Current Rating", "Package"),
		builtin("IC", "Function", "Package"),
		builtin("Microcontroller", "Architecture", "Flash", "RAM", "Package"),
		builtin("Voltage Regulator", "Output Voltage", "Current Rating", "Package"),
		builtin("Crystal", "Frequency", "Load Capacitance", "Package"),
		builtin("Connector", "Pins", "Pitch", "Style"),
		builtin("Switch", "Style", "Current Rating"),
		builtin("Relay", "Coil Voltage", "Contact Rating"),
		builtin("Fuse", "Current Rating", "Voltage Rating", "Style"),
		builtin("Sensor", "Measures", "Interface"),
		builtin("Module", "Function", "Interface"),
		builtin("Other", "Description"),
	}
}
