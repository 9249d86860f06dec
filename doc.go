/*
 * Copyright 2025 Basekick Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package arc provides a client for the Arc time-series database.

# Client

Use NewClient to create a client struct. This is the major entrance to every
API group:

	client := arc.NewClient(&arc.Config{
		Host:  "localhost",
		Port:  8000,
		Token: os.Getenv("ARC_TOKEN"),
	})
	defer client.Close()

# Write Data

Single points and prepared columnar batches go through the write client:

	err := client.Write().WriteColumnar(ctx, "cpu", arc.Columns{
		"host":  {"web-01", "web-02"},
		"usage": {55.2, 63.1},
	})

For sustained ingestion, a BufferedWriter accumulates records and flushes
them in batches:

	w := client.Write().Buffered(arc.WithBatchSize(5000))
	defer w.Close(ctx)

	err := w.Write(ctx, arc.Record{
		Measurement: "cpu",
		Fields:      map[string]any{"usage": 55.2},
		Tags:        map[string]string{"host": "web-01"},
	})

WriteCable is the channel-based alternative: sends never block behind
another caller's flush, and each send reports its outcome on its own
channel pair.

# Query Data

SQL queries return JSON rows, or Arrow records for large result sets:

	result, err := client.Query().Query(ctx, "SELECT * FROM cpu LIMIT 10")
	if err != nil {
		return err
	}
	for _, row := range result.Rows() {
		fmt.Println(row["host"], row["usage"])
	}

# Management

Retention policies, continuous queries, data deletion, and API tokens are
managed through client.Retention(), client.ContinuousQueries(),
client.Deletes(), and client.Auth().
*/
package arc
