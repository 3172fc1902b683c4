package config

import (
	"os"
	"strconv"
)

// ApplyEnvironment applies the top-level environment variable overrides
// spec.md §6 names — MQTT_HOST, MQTT_PORT, MQTT_USERNAME, MQTT_PASSWORD,
// MQTT_PROTOCOL_LEVEL — to the document's "default" broker entry, following
// the teacher's one-env-var-per-field applyXxxEnv style.
func ApplyEnvironment(doc Document) {
	b, ok := doc.Default()
	if !ok {
		return
	}
	if v := os.Getenv("MQTT_HOST"); v != "" {
		b.Host = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			b.Port = p
		}
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		b.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		b.Password = v
	}
	if v := os.Getenv("MQTT_PROTOCOL_LEVEL"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			b.ProtocolLevel = p
		}
	}
}
