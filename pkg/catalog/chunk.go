package catalog

// Chunk is a half-open row range [Start, End) of one table, the unit
// of parallel data transfer. Index is the chunk's position within its
// table, starting at zero. Chunks carry only boundary metadata; row
// streaming happens at scheduling time.
//
// End derives from the table's estimated row count. For the final
// chunk of a table Open is true and End is advisory only: the chunk
// reads to the end of the table, so rows past the estimate are still
// dumped.
type Chunk struct {
	Schema      string
	Table       string
	Index       int
	Start       int64
	End         int64
	Open        bool   // no upper bound; End is the estimate
	OrderingKey string // empty for a whole-table chunk
}

// Rows is the estimated row count of the range. Open chunks may hold
// more.
func (c Chunk) Rows() int64 { return c.End - c.Start }

// PlanChunks splits a table into chunks of roughly chunkSize rows.
//
// A table without a usable ordering key cannot be ranged over
// deterministically and is planned as a single whole-table chunk; the
// same applies when the estimate fits inside one chunk. Otherwise the
// estimate divides into rowEstimate/chunkSize chunks and the final
// chunk absorbs the remainder, so there is never an empty trailing
// chunk and the union of ranges covers [0, rowEstimate) exactly once.
func PlanChunks(table TableInfo, chunkSize int64) []Chunk {
	rows := table.RowEstimate
	if rows < 0 {
		rows = 0
	}
	if table.OrderingKey == "" || chunkSize <= 0 || rows <= chunkSize {
		return []Chunk{{
			Schema: table.Schema,
			Table:  table.Name,
			Index:  0,
			Start:  0,
			End:    rows,
			Open:   true,
		}}
	}

	n := rows / chunkSize
	chunks := make([]Chunk, 0, n)
	for i := int64(0); i < n; i++ {
		chunks = append(chunks, Chunk{
			Schema:      table.Schema,
			Table:       table.Name,
			Index:       int(i),
			Start:       i * chunkSize,
			End:         (i + 1) * chunkSize,
			OrderingKey: table.OrderingKey,
		})
	}
	// the remainder rides along with the final chunk, including any
	// rows the table holds beyond the estimate
	chunks[n-1].End = rows
	chunks[n-1].Open = true
	return chunks
}
