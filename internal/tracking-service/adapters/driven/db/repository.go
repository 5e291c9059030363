package db

type Repository struct {
	HistoryRepository *HistoryRepository
	FleetRepository   *FleetRepository
}

func New(db *DataBase) *Repository {
	return &Repository{
		HistoryRepository: NewHistoryRepository(db.Pool()),
		FleetRepository:   NewFleetRepository(db.Pool()),
	}
}
