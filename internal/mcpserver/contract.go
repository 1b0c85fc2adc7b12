package mcpserver

// WebhookContract describes what contactflow sends to an automation
// workflow when a subscribed CRM event fires.
const WebhookContract = `# contactflow Webhook Contract

Each registration binds one event trigger to one endpoint path for the
registering user. A user has at most one registration per trigger.

## Triggers

| trigger            | fired after                          | data                |
|--------------------|--------------------------------------|---------------------|
| contact.created    | a contact is created                 | the contact record  |
| contact.updated    | a contact is updated or patched      | the contact record  |
| activity.created   | an activity is logged on a contact   | the activity record |

## Target URL

` + "```" + `
POST {base_url}{routing_prefix}{path}
` + "```" + `

- ` + "`routing_prefix`" + ` defaults to ` + "`/api/n8n`" + `.
- ` + "`path`" + ` is the registered url. A full http(s) URL is reduced to its
  path, query and fragment; a missing leading slash is added.
- Registrations with an empty path are skipped.

## Request

Headers: ` + "`Content-Type: application/json`" + `, ` + "`User-Agent: contactflow/1`" + `.

` + "```" + `json
{
  "event": "activity.created",
  "data": { "id": "…", "contact_id": "…", "action": "Called" },
  "triggered_at": "2025-01-15T09:30:00.000Z"
}
` + "```" + `

` + "`triggered_at`" + ` is the UTC send time with millisecond precision.

## Delivery

- Best effort, one attempt per registration, no retries.
- Deliveries run in the background after the CRM change commits; the
  change itself never fails because a webhook did.
- A non-2xx response or network error is logged and otherwise ignored.
- No authentication header or signature is sent.
`
