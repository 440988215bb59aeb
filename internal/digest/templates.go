package digest

// Default templates. Bindings: summary, customers, dashboard_url,
// file_name, top_n.
const (
	defaultSubject = `Churn digest: {{ summary.high_risk_count }} high-risk customers in {{ file_name }}`

	defaultHTML = `<h2>Churn analysis for {{ file_name | escape }}</h2>
<p>{{ summary.total_customers }} customers scored. Mean churn probability {{ summary.churn_rate | percent }}.
High {{ summary.high_risk_count }}, medium {{ summary.medium_risk_count }}, low {{ summary.low_risk_count }}.
Average CLTV {{ summary.avg_cltv | currency }}.</p>
<h3>Top {{ top_n }} at-risk customers</h3>
<table>
<tr><th>Customer</th><th>Risk</th><th>Probability</th><th>Monthly revenue</th><th>Top factor</th></tr>
{% for c in customers %}<tr><td>{{ c.customer_id | escape }}</td><td>{{ c.risk_level }}</td><td>{{ c.probability | percent }}</td><td>{{ c.monthly_revenue | currency }}</td><td>{{ c.top_factor | escape }}</td></tr>
{% endfor %}</table>
{% if dashboard_url != "" %}<p><a href="{{ dashboard_url }}">Open the analysis</a></p>{% endif %}`

	defaultText = `Churn analysis for {{ file_name }}
{{ summary.total_customers }} customers scored, mean churn probability {{ summary.churn_rate | percent }}.
{% for c in customers %}- {{ c.customer_id }}: {{ c.probability | percent }} ({{ c.risk_level }}) {{ c.top_action }}
{% endfor %}`
)
