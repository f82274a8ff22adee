// Package channels sorts datalogger columns into measurement categories by
// substring match on their names.
package channels

import "strings"

// Category is the measurement family of a channel.
type Category int

const (
	Temperature Category = iota
	Voltage
	Current
)

var categoryNames = map[Category]string{
	Temperature: "temperature",
	Voltage:     "voltage",
	Current:     "current",
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return "unknown"
}

// HighFrequency reports whether channels of this category are resampled to
// one point per second before plotting.
func (c Category) HighFrequency() bool {
	return c == Voltage || c == Current
}

// Rule assigns a category to names containing Substring. Case-sensitive.
type Rule struct {
	Category  Category
	Substring string
}

// DefaultRules are evaluated in this order, which is also the render order.
var DefaultRules = []Rule{
	{Category: Temperature, Substring: "Temp"},
	{Category: Voltage, Substring: "Tension"},
	{Category: Current, Substring: "Courant"},
}

// Policy decides what happens to a name matching several rules.
type Policy int

const (
	// FirstMatch keeps a name in the first matching category only.
	FirstMatch Policy = iota
	// AllMatches lists a name under every matching category, so it is
	// rendered once per category.
	AllMatches
)

// Channel is a classified column.
type Channel struct {
	Name     string
	Category Category
}

// Classification is the result of sorting a header.
type Classification struct {
	Temperature []string
	Voltage     []string
	Current     []string
	Excluded    []string
}

// Classify sorts names with DefaultRules.
func Classify(names []string, policy Policy) Classification {
	return ClassifyWith(names, DefaultRules, policy)
}

// ClassifyWith sorts names with the given rules. Each output list keeps
// header order.
func ClassifyWith(names []string, rules []Rule, policy Policy) Classification {
	var c Classification

	for _, name := range names {
		matched := false
		for _, rule := range rules {
			if !strings.Contains(name, rule.Substring) {
				continue
			}
			matched = true
			c.add(rule.Category, name)
			if policy == FirstMatch {
				break
			}
		}
		if !matched {
			c.Excluded = append(c.Excluded, name)
		}
	}

	return c
}

func (c *Classification) add(cat Category, name string) {
	switch cat {
	case Temperature:
		c.Temperature = append(c.Temperature, name)
	case Voltage:
		c.Voltage = append(c.Voltage, name)
	case Current:
		c.Current = append(c.Current, name)
	}
}

// Ordered returns every classified channel in render order: all temperature
// channels, then voltage, then current.
func (c Classification) Ordered() []Channel {
	out := make([]Channel, 0, len(c.Temperature)+len(c.Voltage)+len(c.Current))
	for _, n := range c.Temperature {
		out = append(out, Channel{Name: n, Category: Temperature})
	}
	for _, n := range c.Voltage {
		out = append(out, Channel{Name: n, Category: Voltage})
	}
	for _, n := range c.Current {
		out = append(out, Channel{Name: n, Category: Current})
	}
	return out
}

// Lookup returns the first category a name was classified under.
func (c Classification) Lookup(name string) (Category, bool) {
	for _, ch := range c.Ordered() {
		if ch.Name == name {
			return ch.Category, true
		}
	}
	return 0, false
}
