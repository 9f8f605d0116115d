package sqlite

import "github.com/mindexer/mindexer/mindexer/storage"

var SQLTemplates = storage.SQL{
	InsertIndex: "INSERT INTO mindexer_indexes(collection, name, fields) VALUES(?1, ?2, ?3) ON CONFLICT(collection, name) DO UPDATE SET fields=excluded.fields",
	DeleteIndex: "DELETE FROM mindexer_indexes WHERE collection = ?1 AND name = ?2",
	ListIndexes: "SELECT name, fields FROM mindexer_indexes WHERE collection = ?1 ORDER BY seq",
}
