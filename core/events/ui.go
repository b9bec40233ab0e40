package events

const KindOrbVisibility Kind = "orb.visibility"

type OrbVisibility struct {
	Base
	Visible bool
}

func NewOrbVisibility(visible bool) OrbVisibility {
	return OrbVisibility{Base: NewBase(KindOrbVisibility), Visible: visible}
}
