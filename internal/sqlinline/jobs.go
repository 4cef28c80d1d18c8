package sqlinline

const QClaimPipelineJob = `--sql 7b417f92-66c8-4c2e-9a1f-3d9a72f5b1c4
with next_job as (
    select id
    from pipeline_jobs
    where status = 'pending'
    order by created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update pipeline_jobs
    set status = 'running', updated_at = now()
    where id in (select id from next_job)
    returning id
)
select id from claimed;
`

const QResetStalePipelineJobs = `--sql 0c2f7e5d-94ab-4f0e-8d4f-6c1b2a9e7d31
update pipeline_jobs
set status = 'pending', updated_at = now()
where status = 'running'
  and updated_at < now() - ($1::int * interval '1 second');
`
