// Package device provides the device store and cached registry for door
// controllers.
//
// A device is an RFID reader / door controller that talks to the gateway
// over MQTT. Devices are provisioned outside the gateway. The registry
// wraps a Repository with an in-memory cache that the liveness and status
// handlers write through on every transition. The command path re-reads
// a device's encryption flag from storage on every send and falls back to
// the cache only when storage fails.
//
// # Key Types
//
//   - Device: a controller, its status, heartbeat, firmware and door binding
//   - Status: online, offline or error
//   - Repository / SQLiteRepository: persistence against the devices table
//   - Registry: thread-safe cache over a Repository
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	encrypted, err := registry.EncryptionEnabled(ctx, "reader-1")
package device
