// Package mqtt wraps paho.mqtt.golang for the Hearth Core automation
// ingress.
//
// Automations and external systems publish device commands to
// hearth/command/{house_id}; Hearth mirrors command outcomes and state
// changes to hearth/event/{house_id} so they can react. The wrapper adds
// connection management, auto-reconnect with subscription restoration,
// Last Will and Testament for offline detection, and panic-safe message
// handlers.
//
// All methods are safe for concurrent use.
package mqtt
