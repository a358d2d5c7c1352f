package api

import (
	"bytes"
	"encoding/json"
)

// Dump is the top-level structure of the Roblox API dump. Only the fields used
// to build search records are decoded.
type Dump struct {
	Classes []Class `json:"Classes"`
	Enums   []Enum  `json:"Enums"`
	Version int     `json:"Version"`
}

// Class is a single engine class in the dump.
type Class struct {
	Name       string      `json:"Name"`
	Tags       Tags        `json:"Tags"`
	Members    []Member    `json:"Members"`
	Parameters []Parameter `json:"Parameters,omitempty"`
	ReturnType *DataType   `json:"ReturnType,omitempty"`
}

// Member is a property, function, event or callback of a class.
type Member struct {
	Name       string      `json:"Name"`
	Tags       Tags        `json:"Tags"`
	MemberType string      `json:"MemberType"`
	Parameters []Parameter `json:"Parameters,omitempty"`
	ReturnType *DataType   `json:"ReturnType,omitempty"`
}

// Parameter is a named, typed argument of a member.
type Parameter struct {
	Name string   `json:"Name"`
	Type DataType `json:"Type"`
}

// DataType describes a parameter or return type, e.g. {Name: "Vector3", Category: "DataType"}.
type DataType struct {
	Name     string `json:"Name"`
	Category string `json:"Category"`
}

type Enum struct {
	Name  string     `json:"Name"`
	Tags  Tags       `json:"Tags"`
	Items []EnumItem `json:"Items"`
}

type EnumItem struct {
	Name  string `json:"Name"`
	Tags  Tags   `json:"Tags"`
	Value int    `json:"Value"`
}

// DocEntry is one value of the documentation map, keyed by "@roblox/{scope}/{path}".
type DocEntry struct {
	Description string `json:"documentation"`
	URL         string `json:"learn_more_link"`
}

// DocMap is the documentation lookup table.
type DocMap map[string]DocEntry

// IconInfo is one entry of a GitHub contents API directory listing.
type IconInfo struct {
	Name string `json:"name"`
}

// Tags is a dump tag list. Newer dumps mix objects such as
// {"PreferredDescriptorName": "..."} into the list; only the string tags are kept.
type Tags []string

func (t *Tags) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = nil
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tags := make(Tags, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			continue
		}
		tags = append(tags, s)
	}
	*t = tags
	return nil
}

// Has reports whether tag is present.
func (t Tags) Has(tag string) bool {
	for _, s := range t {
		if s == tag {
			return true
		}
	}
	return false
}
