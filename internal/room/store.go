package room

// Store is the durable backing of the registry. Save must persist the full
// snapshot atomically; Load returns an empty map (not an error) when nothing
// has been saved yet.
type Store interface {
	Load() (map[string]Room, error)
	Save(rooms map[string]Room) error
}
