package component

// Scheduler renders exclusions, tasks, queues and jobs.
type Scheduler struct{}

func (Scheduler) Name() string { return "scheduler" }

func (Scheduler) Declare() Declarations {
	return Declarations{
		Partials: []string{
			"scheduler.excl_edit_route",
			"scheduler.excl_delete_route",
			"scheduler.task_edit_route",
			"scheduler.task_delete_route",
			"scheduler.queue_add_route__task_id",
			"scheduler.queue_edit_route",
			"scheduler.queue_enqueue_route",
			"scheduler.queue_flush_route",
			"scheduler.queue_prune_route",
			"scheduler.queue_delete_route",
			"scheduler.job_delete_route",
		},
		Templates: map[string]string{
			"excl_controls": `link|Edit|{{template "scheduler.excl_edit_route" (dict "excl_id" .id)}}
delete|Delete|{{template "scheduler.excl_delete_route" (dict "excl_id" .id)}}`,
			"task_controls": `link|Edit|{{template "scheduler.task_edit_route" (dict "task_id" .id)}}
link|Add queue|{{template "scheduler.queue_add_route__task_id" (dict "task_id" .id)}}
delete|Delete|{{template "scheduler.task_delete_route" (dict "task_id" .id)}}`,
			"queue_controls": `link|Edit|{{template "scheduler.queue_edit_route" (dict "queue_id" .id)}}
link|Enqueue|{{template "scheduler.queue_enqueue_route" (dict "queue_id" .id)}}
submit|Flush|{{template "scheduler.queue_flush_route" (dict "queue_id" .id)}}
submit|Prune|{{template "scheduler.queue_prune_route" (dict "queue_id" .id)}}
delete|Delete|{{template "scheduler.queue_delete_route" (dict "queue_id" .id)}}`,
			"job_controls": `delete|Delete|{{template "scheduler.job_delete_route" (dict "job_id" .id)}}`,
		},
	}
}
