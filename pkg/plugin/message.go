package plugin

// MessageKind is the lifecycle event category the dispatcher routes on.
type MessageKind int

const (
	MessageOther MessageKind = iota
	MessageCreate
	MessageUpdate
	MessageDelete
	MessageAssociate
	MessageDisassociate
)

var messageKinds = map[string]MessageKind{
	"Create":       MessageCreate,
	"Update":       MessageUpdate,
	"Delete":       MessageDelete,
	"Associate":    MessageAssociate,
	"Disassociate": MessageDisassociate,
}

// ParseMessageKind maps a host message name to its kind. Matching is
// case-exact; every unrecognised name is MessageOther.
func ParseMessageKind(name string) MessageKind {
	if k, ok := messageKinds[name]; ok {
		return k
	}
	return MessageOther
}

func (k MessageKind) String() string {
	switch k {
	case MessageCreate:
		return "Create"
	case MessageUpdate:
		return "Update"
	case MessageDelete:
		return "Delete"
	case MessageAssociate:
		return "Associate"
	case MessageDisassociate:
		return "Disassociate"
	default:
		return "Other"
	}
}
