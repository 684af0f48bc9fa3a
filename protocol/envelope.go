// Package protocol defines the message envelope exchanged between chat peers
// and its line-oriented wire codec. Envelopes are immutable once sent and
// carry only the fields their kind requires.
package protocol

// SystemName is the sender used for announcements generated by the server.
const SystemName = "System"

// NamesHeader is the first line of the content of a client-list reply.
const NamesHeader = "Currently Online:"

// Kind tags an Envelope with its protocol meaning.
type Kind int

const (
	// ConnectionOpen announces a freshly established link (client to server).
	ConnectionOpen Kind = iota
	// ConnectionCheck is the heartbeat ping/pong, valid in both directions.
	ConnectionCheck
	// ConnectionClose announces a voluntary disconnect (client to server).
	ConnectionClose
	// ClientName claims a display name, or acknowledges one when sent bare
	// by the server.
	ClientName
	// SendBroadcast carries a chat line for every connected client.
	SendBroadcast
	// SendAddressed carries a private chat line for a single named client.
	SendAddressed
	// GetClientsAll requests or carries the full online-name list.
	GetClientsAll
	// GetClientsOther is GetClientsAll minus the requesting client.
	GetClientsOther
)

var kindNames = map[Kind]string{
	ConnectionOpen:  "CONNECTION_OPEN",
	ConnectionCheck: "CONNECTION_CHECK",
	ConnectionClose: "CONNECTION_CLOSE",
	ClientName:      "CLIENT_NAME",
	SendBroadcast:   "SEND_BROADCAST",
	SendAddressed:   "SEND_ADDRESSED",
	GetClientsAll:   "GET_CLIENTS_ALL",
	GetClientsOther: "GET_CLIENTS_OTHER",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// known reports whether k is part of the closed kind set.
func (k Kind) known() bool {
	_, ok := kindNames[k]
	return ok
}

// Envelope is one protocol message unit. Sender, Addressee and Content are
// populated exactly as required by Kind; unused fields stay empty.
type Envelope struct {
	Kind      Kind   `json:"kind"`
	Sender    string `json:"sender,omitempty"`
	Addressee string `json:"addressee,omitempty"`
	Content   string `json:"content,omitempty"`
}

// Heartbeat builds a CONNECTION_CHECK envelope.
func Heartbeat() Envelope {
	return Envelope{Kind: ConnectionCheck}
}

// NameClaim builds a CLIENT_NAME envelope carrying the requested name.
func NameClaim(name string) Envelope {
	return Envelope{Kind: ClientName, Content: name}
}

// Broadcast builds a SEND_BROADCAST envelope.
func Broadcast(sender, content string) Envelope {
	return Envelope{Kind: SendBroadcast, Sender: sender, Content: content}
}

// Addressed builds a SEND_ADDRESSED envelope.
func Addressed(sender, addressee, content string) Envelope {
	return Envelope{Kind: SendAddressed, Sender: sender, Addressee: addressee, Content: content}
}
