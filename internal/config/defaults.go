package config

// DefaultPool returns the conservative pool sizing the teacher's own
// GetDefaults() uses for its connection pool: a single warm connection,
// growing to a small ceiling under load.
func DefaultPool() PoolConfig {
	return PoolConfig{
		MinConnections:  1,
		MaxConnections:  4,
		ConnectTimeoutS: 10,
		WaitTimeoutS:    5,
		HeartbeatS:      30,
		MaxIdleTimeS:    300,
	}
}

// DefaultBroker returns a Broker with every field at its documented default,
// analogous to the teacher's defaultMQTT()/defaultApp() helpers.
func DefaultBroker() *Broker {
	return &Broker{
		Host:          "localhost",
		Port:          1883,
		ClientID:      "mqttpool-client",
		KeepAlive:     60,
		ProtocolLevel: 5,
		CleanSession:  true,
		Pool:          DefaultPool(),
		Topics:        nil,
		Debug: DebugConfig{
			Enabled:    false,
			SocketPath: "/tmp/mqttpool-debug.sock",
		},
	}
}
