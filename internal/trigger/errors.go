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

package trigger

import (
	"fmt"

	"github.com/go-errors/errors"
)

// ErrMissingIdentifier fails an invocation whose event carries no
// cluster identifier. No enqueue happens, retrying cannot help.
var ErrMissingIdentifier = errors.Errorf("cluster creation event has no cluster identifier")

// EnqueueFailure reports that the work queue rejected a work item
type EnqueueFailure struct {
	ClusterIdentifier string
	EventID           string
	Cause             error
}

func (e *EnqueueFailure) Error() string {
	return fmt.Sprintf(
		"failed to enqueue work item for cluster '%s' (event %s): %v", e.ClusterIdentifier, e.EventID, e.Cause,
	)
}

func (e *EnqueueFailure) Unwrap() error {
	return e.Cause
}

// IsEnqueueFailure reports whether err is or wraps an EnqueueFailure
func IsEnqueueFailure(
	err error,
) bool {

	var enqueueFailure *EnqueueFailure
	return errors.As(err, &enqueueFailure)
}
