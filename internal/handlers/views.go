package handlers

// View is one of the pages reachable from the navigation bar.
type View int

const (
	ViewPredict View = iota
	ViewAbout
	ViewHistory
)

// Views lists every page in navigation order.
var Views = []View{ViewPredict, ViewAbout, ViewHistory}

func (v View) Path() string {
	switch v {
	case ViewPredict:
		return "/predict"
	case ViewAbout:
		return "/about"
	case ViewHistory:
		return "/history"
	}
	return "/"
}

func (v View) Title() string {
	switch v {
	case ViewPredict:
		return "📊 Prediksi"
	case ViewAbout:
		return "ℹ️ Tentang Model"
	case ViewHistory:
		return "🕑 Riwayat"
	}
	return ""
}

func (v View) template() string {
	switch v {
	case ViewPredict:
		return "predict.tmpl"
	case ViewAbout:
		return "about.tmpl"
	case ViewHistory:
		return "history.tmpl"
	}
	return ""
}

type navItem struct {
	Path   string
	Title  string
	Active bool
}

func navFor(active View) []navItem {
	items := make([]navItem, len(Views))
	for i, v := range Views {
		items[i] = navItem{Path: v.Path(), Title: v.Title(), Active: v == active}
	}
	return items
}
