package predicate

// Minimize rewrites p to a fixpoint: double-negation elimination (folded in
// by Not itself), De Morgan normalization to NNF, absorption, idempotence,
// complement, and constant folding. Logical equivalence to the input is
// preserved at every step, so SAT(p) == SAT(Minimize(a, p)) holds for any
// sound oracle.
func (a *Arena) Minimize(p *Predicate) *Predicate {
	cur := p
	for {
		next := a.rewriteOnce(cur)
		if a.signature(next) == a.signature(cur) {
			return next
		}
		cur = next
	}
}

func (a *Arena) rewriteOnce(p *Predicate) *Predicate {
	if p == nil {
		return True()
	}
	switch p.Kind {
	case KindTrue, KindFalse:
		return p
	case KindAtom:
		return a.foldConstantAtom(p)
	case KindNot:
		return a.rewriteNot(a.rewriteOnce(p.Operand))
	case KindAnd:
		return a.rewriteNAry(KindAnd, p.Operands)
	case KindOr:
		return a.rewriteNAry(KindOr, p.Operands)
	default:
		return p
	}
}

// foldConstantAtom folds an Atom wrapping a resolvable Constant expression
// to True/False, per the constant-folding rewrite rule. An atom that does
// not resolve (e.g. it references an Input or MethodCall variable) is
// returned unchanged.
func (a *Arena) foldConstantAtom(p *Predicate) *Predicate {
	if lit, ok := a.Literal(p.Atom); ok {
		switch lit {
		case "true":
			return True()
		case "false":
			return False()
		}
	}
	return p
}

// rewriteNot pushes negation inward (De Morgan), producing NNF.
func (a *Arena) rewriteNot(inner *Predicate) *Predicate {
	switch inner.Kind {
	case KindTrue:
		return False()
	case KindFalse:
		return True()
	case KindNot:
		return inner.Operand
	case KindAnd:
		negated := make([]*Predicate, len(inner.Operands))
		for i, o := range inner.Operands {
			negated[i] = a.rewriteNot(a.rewriteOnce(o))
		}
		return Or(negated...)
	case KindOr:
		negated := make([]*Predicate, len(inner.Operands))
		for i, o := range inner.Operands {
			negated[i] = a.rewriteNot(a.rewriteOnce(o))
		}
		return And(negated...)
	default:
		return Not(inner)
	}
}

func (a *Arena) rewriteNAry(kind Kind, operands []*Predicate) *Predicate {
	rewritten := make([]*Predicate, len(operands))
	for i, o := range operands {
		rewritten[i] = a.rewriteOnce(o)
	}

	// idempotence + complement: dedupe by signature, and if a term and its
	// negation both occur, the whole conjunction/disjunction collapses.
	seen := make(map[string]*Predicate)
	negSeen := make(map[string]bool)
	var uniq []*Predicate
	for _, o := range rewritten {
		sig := a.signature(o)
		if _, ok := seen[sig]; ok {
			continue
		}
		seen[sig] = o
		uniq = append(uniq, o)
		if o.Kind == KindNot {
			negSeen[a.signature(o.Operand)] = true
		}
	}
	for _, o := range uniq {
		if negSeen[a.signature(o)] {
			if kind == KindAnd {
				return False()
			}
			return True()
		}
	}

	// absorption: A ∧ (A ∨ B) ≡ A, and its dual A ∨ (A ∧ B) ≡ A.
	dual := KindOr
	if kind == KindOr {
		dual = KindAnd
	}
	var keep []*Predicate
	for _, o := range uniq {
		absorbed := false
		if o.Kind == dual {
			for _, other := range uniq {
				if other == o {
					continue
				}
				for _, inner := range o.Operands {
					if a.signature(inner) == a.signature(other) {
						absorbed = true
						break
					}
				}
				if absorbed {
					break
				}
			}
		}
		if !absorbed {
			keep = append(keep, o)
		}
	}

	if kind == KindAnd {
		return And(keep...)
	}
	return Or(keep...)
}
