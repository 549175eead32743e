package model

// MemberTotals are one member's numbers for a month.
type MemberTotals struct {
	Done     int            `json:"done"`
	Received int            `json:"received"`
	Targets  map[string]int `json:"targets"`

	// TargetOrder lists target keys by first occurrence.
	TargetOrder []string `json:"-"`
}

// MonthlyRaidIndex aggregates the ok raids of one month.
type MonthlyRaidIndex struct {
	Month   string                   `json:"month"`
	Members map[string]*MemberTotals `json:"members"`

	// Order is member keys by first occurrence in the merged stream.
	Order []string `json:"-"`

	Unknown  int            `json:"unknown"`
	Ignored  int            `json:"ignored"`
	BySource map[Source]int `json:"bySource"`
}

// NewMonthlyRaidIndex returns an empty index for month.
func NewMonthlyRaidIndex(month string) *MonthlyRaidIndex {
	return &MonthlyRaidIndex{
		Month:    month,
		Members:  make(map[string]*MemberTotals),
		BySource: make(map[Source]int),
	}
}

// Member returns the totals for key, creating them on first use.
func (x *MonthlyRaidIndex) Member(key string) *MemberTotals {
	m, ok := x.Members[key]
	if !ok {
		m = &MemberTotals{Targets: make(map[string]int)}
		x.Members[key] = m
		x.Order = append(x.Order, key)
	}
	return m
}

// AddTarget adds n raids toward target.
func (m *MemberTotals) AddTarget(target string, n int) {
	if _, ok := m.Targets[target]; !ok {
		m.TargetOrder = append(m.TargetOrder, target)
	}
	m.Targets[target] += n
	m.Done += n
}
