package core

// Sink is the streaming protocol collaborator.
//
// Init runs once before any Send. Send delivers one frame tagged with
// its channel; it must not block and must not retain frame past the call.
// ServiceIncoming drains host-originated commands and is called once per
// foreground pass.
type Sink interface {
	Init() error
	Send(id ChannelID, frame []byte)
	ServiceIncoming()
}
