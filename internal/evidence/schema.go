package evidence

import (
	"slices"
	"sort"
)

// Kind is the value kind of a record attribute.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindTime
	KindBool
	KindStrings
	KindRichText
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindTime:
		return "time"
	case KindBool:
		return "bool"
	case KindStrings:
		return "strings"
	case KindRichText:
		return "richtext"
	default:
		return "unknown"
	}
}

// Evidence types.
const (
	TypeCookie          = "cookie"
	TypeVisitedURL      = "visited-url"
	TypeChatMessage     = "chat-message"
	TypeSMS             = "sms"
	TypeCall            = "call"
	TypeContact         = "contact"
	TypeUserAccount     = "user-account"
	TypeFileTransfer    = "file-transfer"
	TypeSharedFile      = "shared-file"
	TypeSearchedText    = "searched-text"
	TypeWirelessNetwork = "wireless-network"
	TypeIPAddress       = "ip-address"
)

// Field is one attribute of an evidence type.
type Field struct {
	Name string
	Kind Kind
}

// HashField names an attribute holding a file hash of the given type.
type HashField struct {
	Attr     string
	HashType string
}

// Schema is the fixed attribute list of an evidence type.
type Schema struct {
	Type   string
	Label  string
	Fields []Field
	Hashes []HashField
}

// Field returns the named attribute definition.
func (s Schema) Field(name string) (Field, bool) {
	i := slices.IndexFunc(s.Fields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return s.Fields[i], true
}

func str(name string) Field       { return Field{Name: name, Kind: KindString} }
func integer(name string) Field   { return Field{Name: name, Kind: KindInt} }
func timestamp(name string) Field { return Field{Name: name, Kind: KindTime} }
func boolean(name string) Field   { return Field{Name: name, Kind: KindBool} }
func list(name string) Field      { return Field{Name: name, Kind: KindStrings} }
func rich(name string) Field      { return Field{Name: name, Kind: KindRichText} }

var schemas = indexSchemas([]Schema{
	{
		Type:  TypeCookie,
		Label: "Cookie",
		Fields: []Field{
			str("name"), str("value"), str("domain"), str("path"),
			timestamp("creation_time"), timestamp("last_access_time"), timestamp("expiration_time"),
			boolean("is_encrypted"), str("app_name"), str("username"),
		},
	},
	{
		Type:  TypeVisitedURL,
		Label: "Visited URL",
		Fields: []Field{
			str("url"), str("title"), timestamp("timestamp"), integer("visit_count"),
			str("app_name"), str("username"),
		},
	},
	{
		Type:  TypeChatMessage,
		Label: "Chat Message",
		Fields: []Field{
			str("account"), str("chat_id"), str("sender"), list("recipients"),
			timestamp("timestamp"), rich("text"), str("plain_text"), str("status"),
			str("direction"), str("app_name"),
		},
	},
	{
		Type:  TypeSMS,
		Label: "SMS",
		Fields: []Field{
			str("sender"), list("recipients"), timestamp("timestamp"), rich("text"),
			str("plain_text"), str("direction"), str("app_name"),
		},
	},
	{
		Type:  TypeCall,
		Label: "Call",
		Fields: []Field{
			str("account"), str("caller"), list("callees"), timestamp("start_time"),
			integer("duration"), str("status"), str("direction"), str("app_name"),
		},
	},
	{
		Type:  TypeContact,
		Label: "Contact",
		Fields: []Field{
			str("account"), str("id"), str("name"), list("phones"), list("emails"), str("app_name"),
		},
	},
	{
		Type:  TypeUserAccount,
		Label: "User Account",
		Fields: []Field{
			str("account_type"), str("id"), str("name"), str("password"), str("app_name"), str("username"),
		},
	},
	{
		Type:  TypeFileTransfer,
		Label: "File Transfer",
		Fields: []Field{
			str("account"), str("direction"), str("filename"), str("path"), integer("size"),
			timestamp("start_time"), timestamp("finish_time"), str("status"),
			str("from"), str("to"), str("app_name"),
		},
	},
	{
		Type:  TypeSharedFile,
		Label: "Shared File",
		Fields: []Field{
			str("app_name"), str("username"), str("filename"), str("path"), integer("size"),
			str("hash_ed2k"), str("hash_md5"),
			timestamp("last_modification_time"), timestamp("last_shared_time"),
			integer("requests"), integer("accepted"), integer("bytes_transferred"), str("state"),
		},
		Hashes: []HashField{{Attr: "hash_ed2k", HashType: "ed2k"}, {Attr: "hash_md5", HashType: "md5"}},
	},
	{
		Type:  TypeSearchedText,
		Label: "Searched Text",
		Fields: []Field{
			str("app_name"), str("text"), timestamp("timestamp"), str("username"),
		},
	},
	{
		Type:  TypeWirelessNetwork,
		Label: "Wireless Network",
		Fields: []Field{
			str("ssid"), str("authentication"), str("encryption"), str("key"),
			str("connection_mode"), str("profile_path"),
		},
	},
	{
		Type:  TypeIPAddress,
		Label: "IP Address",
		Fields: []Field{
			str("address"), str("address_type"), timestamp("timestamp"), str("app_name"),
		},
	},
})

func indexSchemas(defs []Schema) map[string]Schema {
	out := make(map[string]Schema, len(defs))
	for _, s := range defs {
		if _, dup := out[s.Type]; dup {
			panic("evidence: duplicate schema " + s.Type)
		}
		out[s.Type] = s
	}
	return out
}

// Lookup returns the schema registered for evidenceType.
func Lookup(evidenceType string) (Schema, bool) {
	s, ok := schemas[evidenceType]
	return s, ok
}

// Types returns every registered evidence type, sorted.
func Types() []string {
	out := make([]string, 0, len(schemas))
	for t := range schemas {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
