package planner

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/xela07ax/agentflow-prototype/internal/catalog"
	"github.com/xela07ax/agentflow-prototype/internal/domain"
	"go.uber.org/zap"
)

var (
	// ErrNoPlan — цель недостижима из стартового состояния при данном каталоге.
	ErrNoPlan = errors.New("no plan found")
	// ErrSearchBudget — исчерпан лимит раскрытия узлов (патологический каталог).
	ErrSearchBudget = errors.New("planner search budget exhausted")
)

// DefaultMaxExpansions ограничивает поиск на случай каталога с циклическим
// взаимным гашением эффектов.
const DefaultMaxExpansions = 10000

// Planner ищет минимальную по стоимости последовательность действий,
// переводящую состояние из start в состояние, удовлетворяющее goal.
// A* по пространству достижимых World State: узел раскрывается каждым
// применимым действием каталога, стоимость ребра — cost действия.
type Planner struct {
	cat           *catalog.Catalog
	maxExpansions int
	logger        *zap.Logger
}

func New(cat *catalog.Catalog, logger *zap.Logger) *Planner {
	return &Planner{
		cat:           cat,
		maxExpansions: DefaultMaxExpansions,
		logger:        logger.Named("planner"),
	}
}

// node — вершина поиска. seq фиксирует порядок включения во фронтир:
// при равной оценке выигрывает раньше открытый узел, поэтому результат
// детерминирован для одинаковых (start, goal, catalog).
type node struct {
	state  domain.State
	g      float64
	h      float64
	seq    int
	parent *node
	action *domain.Action // действие, приведшее в этот узел (nil для корня)
}

func (n *node) f() float64 { return n.g + n.h }

type frontier []*node

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].f() != f[j].f() {
		return f[i].f() < f[j].f()
	}
	return f[i].seq < f[j].seq
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(*node)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*f = old[:n-1]
	return item
}

// heuristic — число невыполненных полей цели. Никогда не переоценивает
// остаточную стоимость при каталогах со стоимостью действий >= 1
// (все поставляемые каталоги такие), что сохраняет оптимальность A*.
func heuristic(s, goal domain.State) float64 {
	unmet := 0
	for k, want := range goal {
		if got, ok := s[k]; !ok || got != want {
			unmet++
		}
	}
	return float64(unmet)
}

// Plan возвращает упорядоченный список действий минимальной суммарной
// стоимости. Если цель уже достигнута — пустой план и nil.
func (p *Planner) Plan(start, goal domain.State) ([]domain.Action, error) {
	if start.Satisfies(goal) {
		return nil, nil
	}

	seq := 0
	root := &node{state: start, h: heuristic(start, goal), seq: seq}

	open := &frontier{root}
	heap.Init(open)

	// Лучшая известная стоимость достижения состояния (по каноническому ключу).
	bestG := map[string]float64{start.Key(): 0}

	expansions := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)

		// Узел мог устареть: в фронтире лежала худшая копия.
		if g, ok := bestG[cur.state.Key()]; ok && cur.g > g {
			continue
		}

		if cur.state.Satisfies(goal) {
			plan := reconstruct(cur)
			p.logger.Debug("plan found",
				zap.Int("length", len(plan)),
				zap.Float64("cost", cur.g),
				zap.Int("expansions", expansions))
			return plan, nil
		}

		expansions++
		if expansions > p.maxExpansions {
			return nil, fmt.Errorf("%w after %d expansions", ErrSearchBudget, expansions)
		}

		// Порядок обхода каталога фиксирован — часть контракта детерминизма.
		for i := range p.cat.Actions {
			act := &p.cat.Actions[i]
			if !act.Applicable(cur.state) {
				continue
			}

			next := cur.state.Apply(act.Effects)
			key := next.Key()
			g := cur.g + act.Cost
			if prev, ok := bestG[key]; ok && g >= prev {
				continue
			}
			bestG[key] = g

			seq++
			heap.Push(open, &node{
				state:  next,
				g:      g,
				h:      heuristic(next, goal),
				seq:    seq,
				parent: cur,
				action: act,
			})
		}
	}

	return nil, fmt.Errorf("%w: unmet goal fields %v", ErrNoPlan, start.UnmetFields(goal))
}

func reconstruct(n *node) []domain.Action {
	var rev []*domain.Action
	for cur := n; cur.action != nil; cur = cur.parent {
		rev = append(rev, cur.action)
	}
	plan := make([]domain.Action, len(rev))
	for i := range rev {
		plan[i] = *rev[len(rev)-1-i]
	}
	return plan
}
