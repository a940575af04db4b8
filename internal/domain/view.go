package domain

// ViewState is the active screen of a UI session.
type ViewState string

const (
	ViewDashboard ViewState = "DASHBOARD"
	ViewEditor    ViewState = "EDITOR"
	ViewTester    ViewState = "TESTER"
)
