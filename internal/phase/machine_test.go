package phase_test

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"

	"github.com/AbdouB/adaptive/internal/models"
	"github.com/AbdouB/adaptive/internal/phase"
	"github.com/AbdouB/adaptive/internal/phase/phasetest"
)

func TestPhaseMachine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Phase Machine Suite")
}

type change struct {
	next models.Phase
	prev models.Phase
}

type recorder struct {
	mu      sync.Mutex
	changes []change
}

func (r *recorder) record(next, prev models.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change{next: next, prev: prev})
}

func (r *recorder) all() []change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]change, len(r.changes))
	copy(out, r.changes)
	return out
}

var _ = Describe("Machine", func() {
	var (
		sched   *phasetest.ManualScheduler
		rec     *recorder
		machine *phase.Machine
	)

	BeforeEach(func() {
		sched = phasetest.NewManualScheduler()
		rec = &recorder{}
		machine = phase.New("card-1",
			phase.WithScheduler(sched),
			phase.WithOnChange(rec.record),
			phase.WithLogger(zaptest.NewLogger(GinkgoT()).Sugar()),
		)
	})

	AfterEach(func() {
		machine.Close()
	})

	Context("when created", func() {
		It("starts dormant and invisible", func() {
			state := machine.State()
			Expect(state.Phase).To(Equal(models.PhaseDormant))
			Expect(state.Opacity).To(BeZero())
			Expect(state.RelevanceScore).To(BeZero())
			Expect(state.LastTransition).To(Equal(models.TransitionNone))
			Expect(state.HasTransitioned).To(BeFalse())
			Expect(machine.IsVisible()).To(BeFalse())
			Expect(machine.IsInteractive()).To(BeFalse())
		})
	})

	Context("when surfacing", func() {
		It("warms synchronously and surfaces after half the duration", func() {
			Expect(machine.Surface()).To(Equal(models.TransitionSurface))
			Expect(machine.Phase()).To(Equal(models.PhaseWarming))
			Expect(machine.State().Opacity).To(Equal(0.3))
			Expect(machine.IsVisible()).To(BeTrue())
			Expect(machine.IsInteractive()).To(BeFalse())

			sched.Advance(149 * time.Millisecond)
			Expect(machine.Phase()).To(Equal(models.PhaseWarming))

			sched.Advance(time.Millisecond)
			state := machine.State()
			Expect(state.Phase).To(Equal(models.PhaseSurfaced))
			Expect(state.Opacity).To(Equal(1.0))
			Expect(state.LastTransition).To(Equal(models.TransitionSurface))

			Expect(rec.all()).To(Equal([]change{
				{next: models.PhaseWarming, prev: models.PhaseDormant},
				{next: models.PhaseSurfaced, prev: models.PhaseWarming},
			}))
		})

		It("uses the configured duration for the warming hop", func() {
			slow := phase.New("slow", phase.WithScheduler(sched), phase.WithDuration(models.DurationVerySlow))
			defer slow.Close()

			slow.Surface()
			sched.Advance(399 * time.Millisecond)
			Expect(slow.Phase()).To(Equal(models.PhaseWarming))
			sched.Advance(time.Millisecond)
			Expect(slow.Phase()).To(Equal(models.PhaseSurfaced))
		})

		It("re-surfaces from dissolving through warming", func() {
			machine.Dissolve()
			Expect(machine.Surface()).To(Equal(models.TransitionSurface))
			Expect(machine.Phase()).To(Equal(models.PhaseWarming))
		})
	})

	Context("when focusing and blurring", func() {
		BeforeEach(func() {
			machine.Surface()
			sched.Advance(150 * time.Millisecond)
		})

		It("moves between surfaced and focused synchronously", func() {
			Expect(machine.Focus()).To(Equal(models.TransitionFocus))
			Expect(machine.IsFocused()).To(BeTrue())
			Expect(machine.State().RelevanceScore).To(Equal(1.0))

			Expect(machine.Blur()).To(Equal(models.TransitionBlur))
			Expect(machine.Phase()).To(Equal(models.PhaseSurfaced))
			Expect(machine.State().RelevanceScore).To(Equal(0.8))
		})

		It("treats focus from a non-surfaced phase as a direct assignment", func() {
			machine.Dissolve()
			Expect(machine.Focus()).To(Equal(models.TransitionNone))
			state := machine.State()
			Expect(state.Phase).To(Equal(models.PhaseFocused))
			Expect(state.LastTransition).To(Equal(models.TransitionNone))
		})
	})

	Context("when requests race", func() {
		It("lets a dissolve cancel a pending surface", func() {
			machine.Surface()
			sched.Advance(100 * time.Millisecond)
			Expect(machine.Dissolve()).To(Equal(models.TransitionDissolve))
			Expect(machine.HasPending()).To(BeFalse())

			sched.Advance(time.Second)
			Expect(machine.Phase()).To(Equal(models.PhaseDissolving))
			for _, c := range rec.all() {
				Expect(c.next).NotTo(Equal(models.PhaseSurfaced))
			}
			Expect(sched.Pending()).To(BeZero())
		})

		It("lets a surface cancel a pending hibernate", func() {
			machine.Surface()
			sched.Advance(150 * time.Millisecond)
			machine.Hibernate()
			sched.Advance(100 * time.Millisecond)
			machine.Surface()

			sched.Advance(time.Second)
			Expect(machine.Phase()).To(Equal(models.PhaseSurfaced))
		})
	})

	Context("when completing the full cycle", func() {
		It("returns to the starting phase", func() {
			initial := machine.State()

			machine.Surface()
			sched.Advance(150 * time.Millisecond)
			machine.Focus()
			machine.Blur()
			machine.Dissolve()
			Expect(machine.Hibernate()).To(Equal(models.TransitionHibernate))
			Expect(machine.Phase()).To(Equal(models.PhaseDissolving))

			sched.Advance(299 * time.Millisecond)
			Expect(machine.Phase()).To(Equal(models.PhaseDissolving))
			sched.Advance(time.Millisecond)

			final := machine.State()
			Expect(final.Phase).To(Equal(initial.Phase))
			Expect(final.Opacity).To(Equal(initial.Opacity))
			Expect(final.RelevanceScore).To(Equal(initial.RelevanceScore))
			Expect(machine.HasPending()).To(BeFalse())
		})

		It("hibernates straight from surfaced through a dissolving hold", func() {
			machine.Surface()
			sched.Advance(150 * time.Millisecond)
			machine.Hibernate()
			Expect(machine.Phase()).To(Equal(models.PhaseDissolving))
			sched.Advance(300 * time.Millisecond)
			Expect(machine.Phase()).To(Equal(models.PhaseDormant))
		})

		It("ignores hibernate while already dormant", func() {
			Expect(machine.Hibernate()).To(Equal(models.TransitionNone))
			Expect(rec.all()).To(BeEmpty())
			Expect(machine.HasPending()).To(BeFalse())
		})
	})

	Context("when the requested phase is already current", func() {
		It("does not notify", func() {
			machine.Dissolve()
			machine.Dissolve()
			Expect(rec.all()).To(HaveLen(1))
		})
	})

	Context("when auto-surface is configured", func() {
		It("surfaces without any caller", func() {
			auto := phase.New("auto", phase.WithScheduler(sched), phase.WithAutoSurface(50*time.Millisecond))
			defer auto.Close()

			Expect(auto.Phase()).To(Equal(models.PhaseDormant))
			sched.Advance(50 * time.Millisecond)
			Expect(auto.Phase()).To(Equal(models.PhaseWarming))
			sched.Advance(150 * time.Millisecond)
			Expect(auto.Phase()).To(Equal(models.PhaseSurfaced))
		})

		It("is canceled by an explicit request", func() {
			auto := phase.New("auto", phase.WithScheduler(sched), phase.WithAutoSurface(50*time.Millisecond))
			defer auto.Close()

			auto.Dissolve()
			sched.Advance(time.Second)
			Expect(auto.Phase()).To(Equal(models.PhaseDissolving))
		})
	})

	Context("when closed", func() {
		It("cancels pending timers and ignores later requests", func() {
			machine.Surface()
			machine.Close()
			sched.Advance(time.Second)

			Expect(machine.Phase()).To(Equal(models.PhaseWarming))
			Expect(machine.Focus()).To(Equal(models.TransitionNone))
			Expect(rec.all()).To(HaveLen(1))
			Expect(sched.Pending()).To(BeZero())
		})
	})

	Context("when a callback re-enters the machine", func() {
		It("delivers nested changes in order without deadlocking", func() {
			var seen []models.Phase
			var reentrant *phase.Machine
			reentrant = phase.New("nested",
				phase.WithScheduler(sched),
				phase.WithOnChange(func(next, prev models.Phase) {
					seen = append(seen, next)
					if next == models.PhaseDissolving {
						reentrant.Focus()
					}
				}),
			)
			defer reentrant.Close()

			reentrant.Dissolve()
			Expect(seen).To(Equal([]models.Phase{models.PhaseDissolving, models.PhaseFocused}))
		})
	})

	Context("when the machine advances on its own timers", func() {
		It("reports only the timer-driven changes to the advance callback", func() {
			type advance struct {
				next  models.Phase
				label models.Transition
			}
			var advances []advance
			auto := phase.New("auto",
				phase.WithScheduler(sched),
				phase.WithAutoSurface(20*time.Millisecond),
				phase.WithOnAdvance(func(next, _ models.Phase, label models.Transition) {
					advances = append(advances, advance{next: next, label: label})
				}),
			)
			defer auto.Close()

			sched.Advance(time.Second)
			auto.Focus()
			auto.Hibernate()
			sched.Advance(time.Second)

			Expect(advances).To(Equal([]advance{
				{next: models.PhaseWarming, label: models.TransitionSurface},
				{next: models.PhaseSurfaced, label: models.TransitionSurface},
				{next: models.PhaseDormant, label: models.TransitionHibernate},
			}))
		})
	})

	Context("under random request sequences", func() {
		It("settles on the last requested phase with no timer left", func() {
			rng := rand.New(rand.NewPCG(7, 11))
			for round := 0; round < 50; round++ {
				m := phase.New("random", phase.WithScheduler(sched), phase.WithDuration(models.DurationFast))
				var last models.Phase
				for i := 0; i < 20; i++ {
					last = models.AllPhases[rng.IntN(len(models.AllPhases))]
					m.TransitionTo(last)
					Expect(m.Phase().Valid()).To(BeTrue())
					sched.Advance(time.Duration(rng.IntN(200)) * time.Millisecond)
				}
				sched.Advance(time.Second)

				Expect(m.HasPending()).To(BeFalse())
				Expect(m.Phase()).To(Equal(last), "round %d", round)
				Expect(m.State().Phase).To(Equal(m.Phase()))
				m.Close()
			}
			Expect(sched.Pending()).To(BeZero())
		})
	})

	Context("with the real scheduler", func() {
		It("reaches surfaced after the warming hop", func() {
			live := phase.New("real", phase.WithDuration(models.DurationFast))
			defer live.Close()

			live.Surface()
			Eventually(live.Phase).WithTimeout(time.Second).Should(Equal(models.PhaseSurfaced))
		})
	})
})
