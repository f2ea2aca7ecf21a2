package dragonite

// The interval clause is validated by IntervalClause before being spliced in
// with fmt; every other value is a bind parameter.

const bannedUsernamesQuery = `
SELECT username
FROM account
WHERE provider = ?
  AND banned != 0
  AND FROM_UNIXTIME(last_banned) >= %s
ORDER BY username ASC`

const sessionCounts = `
  COALESCE(CAST(JSON_UNQUOTE(JSON_EXTRACT(counts, '$.METHOD_ENCOUNTER')) AS UNSIGNED), 0) AS encounters,
  COALESCE(CAST(JSON_UNQUOTE(JSON_EXTRACT(counts, '$.METHOD_GET_MAP_OBJECTS')) AS UNSIGNED), 0) AS map_objects`

const sessionDuration = `
  CONCAT(
    FLOOR(TIMESTAMPDIFF(SECOND, session_start, session_end) / 3600), ' hours, ',
    FLOOR(MOD(TIMESTAMPDIFF(SECOND, session_start, session_end), 3600) / 60), ' minutes, ',
    MOD(TIMESTAMPDIFF(SECOND, session_start, session_end), 60), ' seconds'
  ) AS session_duration`

// disabledSessionsQuery keeps ErrDisabled sessions below both usage limits.
const disabledSessionsQuery = `
SELECT
  username,` + sessionDuration + `,` + sessionCounts + `
FROM stats_accounts
WHERE reason_for_session_end = 'ErrDisabled'
  AND session_end >= %s
  AND COALESCE(CAST(JSON_UNQUOTE(JSON_EXTRACT(counts, '$.METHOD_ENCOUNTER')) AS UNSIGNED), 0) < ?
  AND COALESCE(CAST(JSON_UNQUOTE(JSON_EXTRACT(counts, '$.METHOD_GET_MAP_OBJECTS')) AS UNSIGNED), 0) < ?
ORDER BY session_end DESC`
