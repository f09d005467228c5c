//go:build linux

package status

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	statusBusName    = "io.robodrummerd.Status"
	statusObjectPath = "/io/robodrummerd/Status"
	statusInterface  = "io.robodrummerd.Status"
)

// linuxBroadcaster emits component status updates as a DBus signal on
// the session bus, the same connect-and-own-a-name pattern the teacher
// uses for its MPRIS session, trimmed to signal emission only (no
// exported methods or properties, since there is nothing to control).
type linuxBroadcaster struct {
	conn *dbus.Conn
}

// NewBroadcaster connects to the session bus and claims the status
// bus name.
func NewBroadcaster() (Broadcaster, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("status: failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(statusBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("status: failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("status: bus name already taken")
	}

	return &linuxBroadcaster{conn: conn}, nil
}

// Broadcast emits a StatusChanged signal carrying the update's fields.
func (b *linuxBroadcaster) Broadcast(u Update) error {
	return b.conn.Emit(
		dbus.ObjectPath(statusObjectPath),
		statusInterface+".StatusChanged",
		u.Component,
		u.Level.String(),
		u.Message,
		u.At.Unix(),
	)
}

// Close releases the session bus connection.
func (b *linuxBroadcaster) Close() error {
	return b.conn.Close()
}
