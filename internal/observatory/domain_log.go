package observatory

// DomainLog is the bounded, oldest-first history of a tracked domain.
type DomainLog []RequestEvent

// Append adds an event to the tail, evicting from the head so that at most
// maxEntries remain.
func (l DomainLog) Append(ev RequestEvent, maxEntries int) DomainLog {
	l = append(l, ev)
	if maxEntries > 0 && len(l) > maxEntries {
		trimmed := make(DomainLog, maxEntries)
		copy(trimmed, l[len(l)-maxEntries:])
		return trimmed
	}
	return l
}
