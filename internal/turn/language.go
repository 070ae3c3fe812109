package turn

// Language identifies which synthesizer voice a turn speaks with.
type Language int

const (
	// LangChinese is the default voice.
	LangChinese Language = iota
	// LangEnglish is chosen when the reply prefix is mostly Latin script.
	LangEnglish
)

func (l Language) String() string {
	if l == LangEnglish {
		return "en"
	}
	return "zh"
}

// defaultDecideRunes is the sample length the router waits for before a
// forced decision, when not configured otherwise.
const defaultDecideRunes = 120

// languageRouter picks the turn's voice from a sampled prefix of the reply.
// The decision is made exactly once per turn and published through decidedCh;
// the synthesis worker blocks on that latch before touching any segment.
//
// Not safe for concurrent use; only the generator worker feeds it.
type languageRouter struct {
	auto        bool
	decideRunes int

	sample    []rune
	choice    Language
	decided   bool
	decidedCh chan struct{}
}

// newLanguageRouter creates a router. When auto is false the router decides
// LangChinese immediately.
func newLanguageRouter(auto bool, decideRunes int) *languageRouter {
	if decideRunes <= 0 {
		decideRunes = defaultDecideRunes
	}
	r := &languageRouter{
		auto:        auto,
		decideRunes: decideRunes,
		decidedCh:   make(chan struct{}),
	}
	if !auto {
		r.latch(LangChinese)
	}
	return r
}

// Decided exposes the one-shot decision latch.
func (r *languageRouter) Decided() <-chan struct{} {
	return r.decidedCh
}

// Choice returns the decided language. Valid only after the latch fires.
func (r *languageRouter) Choice() Language {
	return r.choice
}

// Feed accumulates a reply delta into the decision sample and decides when
// either the sample is long enough or an early sentence boundary shows the
// reply will stay short.
func (r *languageRouter) Feed(delta string) {
	if r.decided {
		return
	}
	if len(r.sample) < r.decideRunes {
		r.sample = append(r.sample, []rune(delta)...)
		if len(r.sample) > r.decideRunes {
			r.sample = r.sample[:r.decideRunes]
		}
	}

	if len(r.sample) >= r.decideRunes {
		r.latch(classify(r.sample))
		return
	}

	// Early decision: a complete short sentence is already representative.
	if len(r.sample) >= softMinRunes {
		for i := softMinRunes - 1; i < len(r.sample); i++ {
			if isEndPunct(r.sample[i]) {
				r.latch(classify(r.sample[:i+1]))
				return
			}
		}
	}
}

// Force decides on whatever sample exists. Called at end of stream so the
// latch always fires.
func (r *languageRouter) Force() {
	if r.decided {
		return
	}
	r.latch(classify(r.sample))
}

func (r *languageRouter) latch(l Language) {
	r.choice = l
	r.decided = true
	close(r.decidedCh)
}

// classify counts CJK ideographs against Latin letters; ties go to Chinese.
func classify(sample []rune) Language {
	var cjk, latin int
	for _, c := range sample {
		switch {
		case c >= 0x4E00 && c <= 0x9FFF:
			cjk++
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			latin++
		}
	}
	if cjk >= latin {
		return LangChinese
	}
	return LangEnglish
}
