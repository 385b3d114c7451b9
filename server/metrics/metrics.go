package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	FlagSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ctf_flag_submissions_total", Help: "Flag submissions by verdict"},
		[]string{"result"},
	)
	HintPurchases = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ctf_hint_purchases_total", Help: "Hints purchased"},
	)
	TeamRegistrations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ctf_team_registrations_total", Help: "Teams registered"},
	)
)

func Register() {
	prometheus.MustRegister(FlagSubmissions, HintPurchases, TeamRegistrations)
}
