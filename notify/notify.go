// Package notify delivers desktop notifications for connection events
// through the org.freedesktop.Notifications D-Bus service.
package notify

import (
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/bastiaanwilliams/OCL/common"
)

const (
	notificationsService = "org.freedesktop.Notifications"
	notificationsPath    = "/org/freedesktop/Notifications"
	notifyMethod         = "org.freedesktop.Notifications.Notify"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotificationInfo NotificationType = iota
	NotificationSuccess
	NotificationWarning
	NotificationError
)

// Notification represents a desktop notification
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	Icon    string
}

// iconFor picks the themed icon for a notification type.
func iconFor(t NotificationType) string {
	switch t {
	case NotificationSuccess:
		return "network-vpn"
	case NotificationWarning:
		return "dialog-warning"
	case NotificationError:
		return "dialog-error"
	default:
		return "network-vpn"
	}
}

// urgencyFor maps a notification type to the freedesktop urgency hint.
func urgencyFor(t NotificationType) byte {
	switch t {
	case NotificationError:
		return 2 // critical
	case NotificationWarning:
		return 1 // normal
	default:
		return 0 // low
	}
}

// Notifier shows desktop notifications. The session bus connection is
// made on first use; environments without one disable notifications
// instead of failing.
type Notifier struct {
	mu       sync.Mutex
	conn     *dbus.Conn
	disabled bool
}

var _ common.Notifier = (*Notifier)(nil)

// New creates a notifier. No bus connection happens until the first
// notification.
func New() *Notifier {
	return &Notifier{}
}

// bus returns the session bus connection, nil when unavailable.
func (n *Notifier) bus() *dbus.Conn {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.disabled {
		return nil
	}
	if n.conn != nil {
		return n.conn
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		common.LogWarn("Desktop notifications unavailable: %v", err)
		n.disabled = true
		return nil
	}
	n.conn = conn
	return conn
}

// Show displays a notification. Delivery failures are logged, never
// returned; a missed notification must not disturb the session. A nil
// notifier shows nothing.
func (n *Notifier) Show(notification Notification) {
	if n == nil {
		return
	}
	conn := n.bus()
	if conn == nil {
		return
	}

	icon := notification.Icon
	if icon == "" {
		icon = iconFor(notification.Type)
	}

	obj := conn.Object(notificationsService, dbus.ObjectPath(notificationsPath))
	call := obj.Call(notifyMethod, 0,
		common.AppName,
		uint32(0),
		icon,
		notification.Title,
		notification.Message,
		[]string{},
		map[string]dbus.Variant{
			"urgency":       dbus.MakeVariant(urgencyFor(notification.Type)),
			"desktop-entry": dbus.MakeVariant(common.AppID),
		},
		int32(-1),
	)
	if call.Err != nil {
		common.LogWarn("Error showing notification: %v", call.Err)
	}
}

// Notify shows an informational notification.
func (n *Notifier) Notify(title, message string) {
	n.Show(Notification{Title: title, Message: message, Type: NotificationInfo})
}

// NotifyWithIcon shows a notification with a specific themed icon.
func (n *Notifier) NotifyWithIcon(title, message, icon string) {
	n.Show(Notification{Title: title, Message: message, Type: NotificationInfo, Icon: icon})
}

// Connected announces an established session.
func (n *Notifier) Connected(name string) {
	n.Show(Notification{
		Title:   "VPN Connected",
		Message: "Connected to " + name,
		Type:    NotificationSuccess,
		Icon:    "network-vpn",
	})
}

// Disconnected announces the end of a session.
func (n *Notifier) Disconnected(name string) {
	n.Show(Notification{
		Title:   "VPN Disconnected",
		Message: "Disconnected from " + name,
		Type:    NotificationInfo,
		Icon:    "network-vpn-disconnected",
	})
}

// ConnectionFailed announces a failed session.
func (n *Notifier) ConnectionFailed(name, reason string) {
	n.Show(Notification{
		Title:   "Connection Error",
		Message: name + ": " + reason,
		Type:    NotificationError,
		Icon:    "network-vpn-error",
	})
}
