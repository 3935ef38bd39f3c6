package protocol

// Version is the protocol version the server speaks. Sent by the
// client in hello and echoed back in welcome.
const Version = "weft/1"

// MsgType discriminates messages on the wire.
type MsgType string

const (
	// Client → server.
	MsgHello MsgType = "hello"
	MsgEvent MsgType = "event"
	MsgPing  MsgType = "ping"
	MsgAck   MsgType = "ack"

	// Server → client.
	MsgWelcome MsgType = "welcome"
	MsgPatches MsgType = "patches"
	MsgReload  MsgType = "reload"
	MsgError   MsgType = "error"
	MsgPong    MsgType = "pong"
)

// Msg is implemented by every protocol message.
type Msg interface {
	// Kind returns the message's type discriminator.
	Kind() MsgType
}

func (m *Hello) Kind() MsgType    { return MsgHello }
func (m *Event) Kind() MsgType    { return MsgEvent }
func (m *Ping) Kind() MsgType     { return MsgPing }
func (m *Ack) Kind() MsgType      { return MsgAck }
func (m *Welcome) Kind() MsgType  { return MsgWelcome }
func (m *Patches) Kind() MsgType  { return MsgPatches }
func (m *Reload) Kind() MsgType   { return MsgReload }
func (m *ErrorMsg) Kind() MsgType { return MsgError }
func (m *Pong) Kind() MsgType     { return MsgPong }
