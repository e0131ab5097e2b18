package signal

import "github.com/dkeye/Collab/internal/protocol"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn, id string) {
	_ = ctl.sendJSON(conn, protocol.Ack{Type: protocol.TypePong, ID: id})
}
