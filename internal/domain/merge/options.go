package merge

// Option applies a configuration option to the Merger.
type Option func(*Merger)

// WithAliasTable registers or replaces the alias table for a source.
func WithAliasTable(source string, table AliasTable) Option {
	return func(m *Merger) {
		if source != "" && table != nil {
			m.tables[source] = table
		}
	}
}
