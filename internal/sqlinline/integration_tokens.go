package sqlinline

// Vendor API keys live in integration_tokens, one row per provider, so
// operators can rotate keys without a redeploy. Environment variables are
// only a fallback.

const QSelectIntegrationToken = `--sql 3f2a9c1e-88d4-4b0a-9e67-21c5df40ab9e
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql b71446da-5c02-4e8f-b3d9-0e8a92f1c643
with incoming as (
    select
        $1::text as provider,
        $2::text as token,
        coalesce($3::jsonb, '{}'::jsonb) as properties
)
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), (select provider from incoming), (select token from incoming), (select properties from incoming), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
