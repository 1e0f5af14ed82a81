// Package metrics 定義服務對外暴露的 prometheus 指標
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 結果標籤
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// Metrics 集中管理 counter；nil *Metrics 的方法皆為 no-op，測試可直接傳 nil
type Metrics struct {
	logins       *prometheus.CounterVec
	checkouts    *prometheus.CounterVec
	adminCreated prometheus.Counter
}

// New 建立並註冊所有 collector
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keycustody",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keycustody",
			Name:      "checkouts_total",
			Help:      "Key checkouts by result.",
		}, []string{"result"}),
		adminCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keycustody",
			Name:      "bootstrap_admin_created_total",
			Help:      "Administrators created or promoted by startup bootstrap.",
		}),
	}
	for _, c := range []prometheus.Collector{m.logins, m.checkouts, m.adminCreated} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Login 記錄一次登入結果
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// Checkout 記錄一次借出結果
func (m *Metrics) Checkout(result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
}

// AdminCreated 記錄 bootstrap 建立（或提升）管理員
func (m *Metrics) AdminCreated() {
	if m == nil {
		return
	}
	m.adminCreated.Inc()
}
