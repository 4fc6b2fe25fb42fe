package main

var mainQML = `
import QtQuick 2.9
import QtQuick.Controls 2.2
import QtQuick.Layouts 1.3
import QtQuick.Window 2.2
import Crimson.QBackend 1.0

ApplicationWindow {
	id: window
	width: 900
	height: 600
	visible: true
	title: "Time series"

	property var settings: Backend.settings
	property var dialog: Backend.dialog
	property var traceView: Backend.traceView

	header: ToolBar {
		RowLayout {
			CheckBox {
				text: Backend.trace.text
				checked: Backend.trace.checked
				onToggled: Backend.trace.checked = checked
			}
			CheckBox {
				text: Backend.record.text
				checked: Backend.record.checked
				enabled: Backend.recordingEnabled
				onToggled: Backend.record.checked = checked
			}
			ToolButton {
				text: "Channel settings"
				enabled: Backend.channelSettingsEnabled
				onClicked: Backend.openChannelSettings()
			}
			ToolButton {
				text: "Trace view"
				onClicked: Backend.openTraceView()
			}
			ComboBox {
				model: Backend.currentChannel.items
				currentIndex: Backend.currentChannel.currentIndex
				onActivated: Backend.currentChannel.currentIndex = index
			}
			Label { text: Backend.currentValue.text }
		}
	}

	RowLayout {
		anchors.fill: parent

		ListView {
			Layout.fillWidth: true
			Layout.fillHeight: true
			model: Backend.values
			delegate: Label {
				text: model.name + ": " + (model.value === null ? "-" : model.value.toFixed(4)) + " " + model.unit
				visible: model.showData
				opacity: model.active ? 1 : 0.4
			}
		}

		GridLayout {
			columns: 2
			Label { text: "Trace length" }
			SpinBox {
				from: settings.traceLength.minimum * 1000
				to: settings.traceLength.maximum * 1000
				value: settings.traceLength.value * 1000
				editable: true
				onValueModified: settings.traceLength.value = value / 1000
			}
			Label { text: "Data rate" }
			SpinBox {
				from: settings.dataRate.minimum * 10
				to: settings.dataRate.maximum * 10
				value: settings.dataRate.value * 10
				editable: true
				onValueModified: settings.dataRate.value = value / 10
			}
			Label { text: "Oversampling" }
			SpinBox {
				from: settings.oversampling.minimum
				to: settings.oversampling.maximum
				value: settings.oversampling.value
				editable: true
				onValueModified: settings.oversampling.value = value
			}
			Label { text: "Moving average" }
			SpinBox {
				from: settings.movingAverage.minimum
				to: settings.movingAverage.maximum
				stepSize: settings.movingAverage.stepSize
				value: settings.movingAverage.value
				editable: true
				onValueModified: settings.movingAverage.value = value
			}
		}
	}

	Dialog {
		title: "Channel settings"
		visible: dialog.visible
		standardButtons: Dialog.Ok | Dialog.Cancel
		onAccepted: Backend.applyChannelSettings()
		onRejected: Backend.cancelChannelSettings()

		ColumnLayout {
			Repeater {
				model: dialog.rows
				RowLayout {
					Label { text: modelData.name + " (" + modelData.unit + ")" }
					CheckBox {
						text: modelData.active.text
						checked: modelData.active.checked
						onToggled: modelData.active.checked = checked
					}
					CheckBox {
						text: modelData.averaged.text
						checked: modelData.averaged.checked
						onToggled: modelData.averaged.checked = checked
					}
				}
			}
		}
	}

	Dialog {
		title: "Trace view"
		visible: traceView.visible
		standardButtons: Dialog.Ok | Dialog.Cancel
		onAccepted: Backend.applyTraceView()
		onRejected: Backend.cancelTraceView()

		ColumnLayout {
			Repeater {
				model: traceView.rows
				RowLayout {
					Label { text: modelData.name }
					CheckBox {
						text: modelData.showData.text
						checked: modelData.showData.checked
						onToggled: modelData.showData.checked = checked
					}
					CheckBox {
						text: modelData.showAverage.text
						checked: modelData.showAverage.checked
						onToggled: modelData.showAverage.checked = checked
					}
					SpinBox {
						from: modelData.digits.minimum
						to: modelData.digits.maximum
						value: modelData.digits.value
						textFromValue: function(value) { return value < 0 ? "auto" : value }
						onValueModified: modelData.digits.value = value
					}
					CheckBox {
						text: modelData.showLabel.text
						checked: modelData.showLabel.checked
						onToggled: modelData.showLabel.checked = checked
					}
				}
			}
		}
	}
}
`
