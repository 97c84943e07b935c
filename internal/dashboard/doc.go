// Package dashboard loads dashboard definitions written in CUE.
//
// A dashboard is a titled set of panels; each panel is one aggregate query
// over a dataset plus the chart used to draw it:
//
//	dashboard: sales: {
//		title: "Sales"
//		panel: revenue: {
//			dataset:     "orders"
//			measure:     "amount"
//			aggregation: "sum"
//			bucket:      "month"
//			range:       "last_12_months"
//			group_by:    "region"
//			filter: channel: ["web", "app"]
//			chart:    "line"
//			trend:    true
//			forecast: 3
//		}
//	}
//
// Compile turns one CUE value into a Dashboard, applying defaults.
// Validate checks a compiled Dashboard and returns coded errors.
// LoadDir does both for every .cue file in a directory.
package dashboard
