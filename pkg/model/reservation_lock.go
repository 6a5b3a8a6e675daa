package model

import "time"

// ReservationLock is an advisory per-machine lock held while a reservation is
// checked for conflicts and inserted. Expired locks are reaped by a TTL index.
// Owner is a per-acquisition token; only the holder that wrote it may release the lock.
type ReservationLock struct {
	ID        string    `bson:"_id" json:"id"`
	MachineID string    `bson:"machine_id" json:"machineId"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
