package jobs

// Registry is an ordered table of background jobs.
//
// Jobs are kept in slots in the order they were pushed. The top slot is the
// most recent job, the default target of fg and bg. The registry isn't safe
// for concurrent use; it belongs to the shell's read loop.
type Registry struct {
	slots []*Job
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Push adds job as the most recent job.
func (r *Registry) Push(job *Job) {
	r.slots = append(r.slots, job)
}

// Pop removes and returns the most recent job.
func (r *Registry) Pop() (*Job, bool) {
	if len(r.slots) == 0 {
		return nil, false
	}

	last := len(r.slots) - 1
	job := r.slots[last]
	r.slots[last] = nil
	r.slots = r.slots[:last]
	return job, true
}

// PeekLast returns the most recent job without removing it.
func (r *Registry) PeekLast() (*Job, bool) {
	if len(r.slots) == 0 {
		return nil, false
	}
	return r.slots[len(r.slots)-1], true
}

// MostRecent returns the pid of the most recent job.
func (r *Registry) MostRecent() (int, bool) {
	job, ok := r.PeekLast()
	if !ok {
		return 0, false
	}
	return job.Pid, true
}

// Lookup finds the job with the given pid.
func (r *Registry) Lookup(pid int) (*Job, bool) {
	if i := r.index(pid); i >= 0 {
		return r.slots[i], true
	}
	return nil, false
}

// Remove deletes the job with the given pid, keeping the order of the rest.
func (r *Registry) Remove(pid int) (*Job, bool) {
	i := r.index(pid)
	if i < 0 {
		return nil, false
	}

	job := r.slots[i]
	copy(r.slots[i:], r.slots[i+1:])
	r.slots[len(r.slots)-1] = nil
	r.slots = r.slots[:len(r.slots)-1]
	return job, true
}

// Len returns the number of jobs.
func (r *Registry) Len() int {
	return len(r.slots)
}

// Jobs returns the jobs in the order they were pushed.
func (r *Registry) Jobs() []*Job {
	out := make([]*Job, len(r.slots))
	copy(out, r.slots)
	return out
}

func (r *Registry) index(pid int) int {
	for i := len(r.slots) - 1; i >= 0; i-- {
		if r.slots[i].Pid == pid {
			return i
		}
	}
	return -1
}
