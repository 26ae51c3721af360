// Package models defines the domain entities of the subx subscription transfer tool.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects: values fetched from the YouTube Data API
//   - [Channel] : channel identity, display title and the [ResourceID] used by the write API
//   - [Subscription] : one entry of a subscription list, wrapping a [Channel]
//   - [SubscriptionSet] : an ordered list of subscriptions for one account or channel
//   - [Page] : one page of a list response with its continuation token
//   - [Snapshot] : the exported source list written to disk
//
// 2. Persistent Entities: audit records written to the local run history
//   - [TransferRun] : a single invocation of the pipeline with its counters
//   - [RunOutcome] : the result of one subscribe request within a run
//
// Channel identity is the channel id alone; titles are diagnostic only.
package models
