// Package domain models Wet-Bulb Globe Temperature (WBGT) forecast data and
// the alert-classification rules built on top of it.
//
// # Data Source
//
// Forecast values come from the Ministry of the Environment heat-stress
// prediction service, which publishes a CSV of predicted WBGT readings per
// observation point. Readings are encoded as integers scaled by 10
// (e.g. 265 = 26.5 °C WBGT) and are divided by 10 on import.
//
// # Time Keys
//
// Forecasts are bucketed into fixed 3-hour intervals identified by a sortable
// key "yyyymmddhh" where hh runs from 01 to 24 (so "2023061424" is the bucket
// ending at midnight on June 14th). A day's schedule consists of the eight
// buckets at hours 03, 06, ..., 24. Stored forecasts expire 72 hours after
// their update timestamp.
//
// # Alert Levels
//
// Alert levels are closed value ranges with a priority rank; higher priority
// means more severe. Ranges may overlap, and classification always picks the
// highest-priority matching range. Among ranges with equal priority the
// first-seen one wins; that tie-break is a deliberate, tested policy.
//
// # Regions
//
// A region (prefecture) is a named set of observation points. The regional
// alert level for a day is the highest-priority level among the
// classifications of each point's daily-maximum forecast. Points with no
// stored data are skipped; a region where every point is empty is an
// operational error ([ErrNoAlertData]), not a default.
package domain
