/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package postgresql

// All templates take the sanitized table name as first argument

const queryTemplateCreateTable = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id                 BIGSERIAL PRIMARY KEY,
    cluster_identifier TEXT NOT NULL,
    enqueued_at        TIMESTAMPTZ NOT NULL,
    source_event_id    TEXT,
    attempt_count      INTEGER NOT NULL DEFAULT 0,
    lease_token        TEXT,
    visible_at         TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
)`

const queryTemplateCreateIndex = `
CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (visible_at, id)`

const queryTemplateEnqueue = `
INSERT INTO %[1]s (cluster_identifier, enqueued_at, source_event_id)
VALUES ($1, $2, NULLIF($3, ''))`

const queryTemplateLease = `
WITH next AS (
    SELECT id
    FROM %[1]s
    WHERE visible_at <= clock_timestamp()
    ORDER BY visible_at, id
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
UPDATE %[1]s AS q
SET visible_at    = clock_timestamp() + make_interval(secs => $1),
    attempt_count = q.attempt_count + 1,
    lease_token   = $2
FROM next
WHERE q.id = next.id
RETURNING q.id, q.cluster_identifier, q.enqueued_at, coalesce(q.source_event_id, ''), q.attempt_count, q.visible_at`

const queryTemplateAcknowledge = `
DELETE FROM %[1]s WHERE id = $1 AND lease_token = $2`

const queryTemplateExists = `
SELECT true FROM %[1]s WHERE id = $1`

const queryTemplateExtend = `
UPDATE %[1]s
SET visible_at = clock_timestamp() + make_interval(secs => $3)
WHERE id = $1 AND lease_token = $2 AND visible_at > clock_timestamp()
RETURNING visible_at`

const queryTemplateDepth = `
SELECT count(*) FROM %[1]s`
