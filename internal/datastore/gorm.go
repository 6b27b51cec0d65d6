package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DataStore implements the queries shared by the gorm backed stores.
type DataStore struct {
	DB      *gorm.DB
	backend string
	metrics QueryRecorder
}

// Backend names the implementation.
func (ds *DataStore) Backend() string {
	return ds.backend
}

func (ds *DataStore) db(ctx context.Context) (*gorm.DB, error) {
	if ds.DB == nil {
		return nil, ErrNotOpen
	}
	return ds.DB.WithContext(ctx), nil
}

// GetNodes returns the full node directory ordered by creation.
func (ds *DataStore) GetNodes(ctx context.Context) (nodes []Node, err error) {
	defer func(start time.Time) { err = observe(ds.metrics, ds.backend, QueryNodes, start, err) }(time.Now())

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	err = db.Order("created_at ASC, id ASC").Find(&nodes).Error
	return nodes, err
}

// GetReadingCounts returns readings per node.
func (ds *DataStore) GetReadingCounts(ctx context.Context) (counts map[string]int64, err error) {
	defer func(start time.Time) { err = observe(ds.metrics, ds.backend, QueryReadingCounts, start, err) }(time.Now())

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		NodeID string
		Pulses int64
	}
	if err := db.Model(&Reading{}).
		Select("node_id, COUNT(*) AS pulses").
		Group("node_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts = make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.NodeID] = r.Pulses
	}
	return counts, nil
}

// GetRecentReadings returns at most limit readings, newest first.
func (ds *DataStore) GetRecentReadings(ctx context.Context, limit int) (readings []Reading, err error) {
	defer func(start time.Time) { err = observe(ds.metrics, ds.backend, QueryRecent, start, err) }(time.Now())

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	err = db.Order("timestamp DESC, id DESC").Limit(limit).Find(&readings).Error
	return readings, err
}

// CountReadings returns the number of readings.
func (ds *DataStore) CountReadings(ctx context.Context) (n int64, err error) {
	defer func(start time.Time) { err = observe(ds.metrics, ds.backend, QueryCount, start, err) }(time.Now())

	db, err := ds.db(ctx)
	if err != nil {
		return 0, err
	}
	err = db.Model(&Reading{}).Count(&n).Error
	return n, err
}

// SaveNode inserts node or updates its inviter when it already exists.
func (ds *DataStore) SaveNode(ctx context.Context, node *Node) (err error) {
	defer func(start time.Time) { err = observe(ds.metrics, ds.backend, QuerySaveNode, start, err) }(time.Now())

	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"referred_by"}),
	}).Create(node).Error
}

// SaveReading appends a reading and fills in its id.
func (ds *DataStore) SaveReading(ctx context.Context, reading *Reading) (err error) {
	defer func(start time.Time) { err = observe(ds.metrics, ds.backend, QuerySaveReading, start, err) }(time.Now())

	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	return db.Create(reading).Error
}

// Close releases the underlying connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	ds.DB = nil
	return sqlDB.Close()
}

// performAutoMigration creates or updates the nodes and readings tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Node{}, &Reading{}); err != nil {
		return dbError(err, "auto_migrate", dbType)
	}
	if debug {
		log.Debug("database connection initialized", "type", dbType, "connection", connectionInfo)
	}
	return nil
}
