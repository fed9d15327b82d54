package persist

// Store bundles the repositories the lobby writes to.
type Store struct {
	*PlayerRepo
	*GameRepo
}

func NewStore(db *DB) *Store {
	return &Store{PlayerRepo: NewPlayerRepo(db), GameRepo: NewGameRepo(db)}
}
