/*
Package aggregator composes independent read-only data sources into
consolidated products for dashboards and AI consumers.

Two products are built:

  - BuildDashboard: consolidated KPIs, sales aggregates, top products,
    inventory counts and open alerts for a date window. Every source is
    queried inside its own guard; a failing source drops its section and
    flags the result Partial instead of failing the whole call.

  - BuildContext: a bounded, intent-scoped payload (sales, inventory,
    financial, forecast or general). Only the data relevant to the intent is
    fetched, capped at a per-section record limit, so downstream AI-context
    payloads stay small regardless of overall data volume.

An aggregator may additionally be attached to the event bus, where it keeps
a bounded feed of recent stock-low and anomaly events merged into the
dashboard.

Sources are optional: a nil provider simply omits its sections, mirroring a
module that is not installed.
*/
package aggregator
