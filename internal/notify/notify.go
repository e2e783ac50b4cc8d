// Package notify delivers the desktop side effects of a session: popups
// through the freedesktop notification service and audio cues through an
// external player.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/godbus/dbus/v5"
)

// ErrUnsupported indicates the side effect is not available on this system.
var ErrUnsupported = errors.New("notification backend unsupported")

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = dbus.ObjectPath("/org/freedesktop/Notifications")
	notificationsNotif = notificationsDest + ".Notify"

	// DefaultTimeout is how long a popup stays on screen.
	DefaultTimeout = 2 * time.Second
)

// DesktopNotifier shows popups via org.freedesktop.Notifications.
type DesktopNotifier struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	appName string
	timeout time.Duration
}

// NewDesktopNotifier connects to the session bus.
func NewDesktopNotifier(appName string) (*DesktopNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connect session bus: %v", ErrUnsupported, err)
	}
	return &DesktopNotifier{
		conn:    conn,
		obj:     conn.Object(notificationsDest, notificationsPath),
		appName: appName,
		timeout: DefaultTimeout,
	}, nil
}

// Notify shows a popup with the given summary and body. The call gives up
// after the popup timeout so a stuck notification service cannot hold a tick.
func (n *DesktopNotifier) Notify(ctx context.Context, summary, body string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	call := n.obj.CallWithContext(ctx, notificationsNotif, 0,
		n.appName, uint32(0), "", summary, body,
		[]string{}, map[string]dbus.Variant{}, int32(n.timeout/time.Millisecond))
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}
	return nil
}

// Close releases the bus connection.
func (n *DesktopNotifier) Close() error {
	if n == nil || n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

// LogNotifier writes popups to the daemon log. It stands in when no
// notification service is reachable.
type LogNotifier struct{}

// Notify logs the popup text.
func (LogNotifier) Notify(_ context.Context, summary, body string) error {
	log.Printf("notify: %s: %s", summary, body)
	return nil
}
