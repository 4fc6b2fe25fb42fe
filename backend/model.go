package qbackend

// Model is embedded in another type instead of QObject to create
// a data model, represented as a QAbstractItemModel to the client.
//
// To be a model, a type must embed Model and must implement the
// ModelDataSource interface. No other special initialization is
// necessary.
//
// When data changes, you must call Model's methods to notify the
// client of the change.
type Model struct {
	QObject
	// ModelAPI is an internal object for the model data API
	ModelAPI *modelAPI `json:"_qb_model"`
}

// Types embedding Model must implement ModelDataSource to provide data
type ModelDataSource interface {
	Row(row int) interface{}
	RowCount() int
	RoleNames() []string
}

// modelAPI implements the internal qbackend API for model data; see QBackendModel from the plugin
type modelAPI struct {
	QObject
	Model     *Model `json:"-"`
	RoleNames []string
	BatchSize int

	// Signals
	ModelReset   func([]interface{}, int)      `qbackend:"rowData,moreRows"`
	ModelInsert  func(int, []interface{}, int) `qbackend:"start,rowData,moreRows"`
	ModelRemove  func(int, int)                `qbackend:"start,end"`
	ModelMove    func(int, int, int)           `qbackend:"start,end,destination"`
	ModelUpdate  func(int, interface{})        `qbackend:"row,data"`
	ModelRowData func(int, []interface{})      `qbackend:"start,rowData"`
}

func (m *modelAPI) Reset() {
	m.Model.Reset()
}

func (m *modelAPI) RequestRows(start, count int) {
	// BatchSize does not apply to RequestRows; the client asked for it
	rows, _ := m.getRows(start, count, 0)
	m.Emit("modelRowData", start, rows)
}

func (m *modelAPI) SetBatchSize(size int) {
	if size < 0 {
		size = 0
	}
	if size == m.BatchSize {
		return
	}
	m.BatchSize = size
	m.Changed("BatchSize")
}

func (m *Model) dataSource() ModelDataSource {
	// The QObject interface is embedded in Model, so it can be accessed from here,
	// but Model is embedded in the app's model type as well, and that is the type
	// that is initialized for the QObject. Its Object field points back to the
	// app's type, which is usually not available from embedded types.
	impl, _ := m.QObject.(*objectImpl)
	if impl == nil {
		return nil
	}
	ds, _ := impl.Object.(ModelDataSource)
	return ds
}

func (m *Model) InitObject() {
	data := m.dataSource()
	if data == nil {
		m.Connection().warn("model type does not implement ModelDataSource")
		return
	}

	m.ModelAPI = &modelAPI{
		Model:     m,
		RoleNames: data.RoleNames(),
	}

	// Initialize ModelAPI right away as well
	if err := m.Connection().InitObject(m.ModelAPI); err != nil {
		m.Connection().warn("model API init failed: %s", err)
	}
}

// getRows returns up to count rows from start, clamped to the available
// rows. A negative count means all remaining rows. If batchSize limits the
// rows returned, the number of rows left out is returned as well.
func (m *modelAPI) getRows(start, count, batchSize int) ([]interface{}, int) {
	data := m.Model.dataSource()
	if data == nil {
		return []interface{}{}, 0
	}

	rowCount, moreRows := data.RowCount(), 0
	if start < 0 {
		start = 0
	}
	if start > rowCount {
		start = rowCount
	}
	if count < 0 || start+count > rowCount {
		count = rowCount - start
	}

	if batchSize > 0 && count > batchSize {
		moreRows = count - batchSize
		count = batchSize
	}

	rows := make([]interface{}, count)
	for i := range rows {
		rows[i] = data.Row(start + i)
	}
	return rows, moreRows
}

func (m *Model) Reset() {
	rows, moreRows := m.ModelAPI.getRows(0, -1, m.ModelAPI.BatchSize)
	m.ModelAPI.Emit("modelReset", rows, moreRows)
}

func (m *Model) Inserted(start, count int) {
	rows, moreRows := m.ModelAPI.getRows(start, count, m.ModelAPI.BatchSize)
	m.ModelAPI.Emit("modelInsert", start, rows, moreRows)
}

func (m *Model) Removed(start, count int) {
	m.ModelAPI.Emit("modelRemove", start, start+count-1)
}

func (m *Model) Moved(start, count, destination int) {
	m.ModelAPI.Emit("modelMove", start, start+count-1, destination)
}

func (m *Model) Updated(row int) {
	data := m.dataSource()
	if data == nil {
		// No-op for uninitialized objects
		return
	}
	m.ModelAPI.Emit("modelUpdate", row, data.Row(row))
}
