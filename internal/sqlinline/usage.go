package sqlinline

const QInsertUsageEvent = `--sql 3fa1c9e7-52d4-4b8a-b1e0-9c6f2d84a55b
insert into usage_events(id, identity_id, job_id, content_kind, admitted, created_at, properties)
values (gen_random_uuid(), $1::text, nullif($2::text, '')::uuid, $3::text, $4::boolean, now(), coalesce($5::jsonb, '{}'::jsonb));
`
